package typecheck

import (
	"sort"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/position"
	"github.com/lumen-lang/lumen/internal/types"
)

// ClassInfo is one declared class: its member signatures (own plus those
// inherited through superclasses) and its registered instances.
type ClassInfo struct {
	Name   string
	Supers []string

	// Members maps member name to its scheme. The scheme's single
	// quantified variable is the class parameter, constrained to the class.
	Members map[string]types.Scheme

	Instances []*InstanceInfo
}

// InstanceInfo is one instance of a class, keyed by the head constructor of
// its argument type. Tags lists the head's data constructors; the runtime
// dispatch table for tag-only-distinguishable instances is built from them.
type InstanceInfo struct {
	Class    string
	HeadName string
	Members  map[string]*ast.Def
	Tags     []string
	Span     position.Span
}

// Classes with compiler-known instances. Arithmetic and ordering resolve
// against this table; user code extends the table through declarations.
var builtinInstances = map[string][]string{
	"Num": {"Int", "Float"},
	"Ord": {"Int", "Float", "Text"},
}

// collectClasses registers every class declaration and expands member
// signatures through superclasses. A cycle in the superclass graph is
// reported once and broken rather than followed.
func (c *Checker) collectClasses(prog *ast.Program) {
	for name := range builtinInstances {
		c.classes[name] = &ClassInfo{Name: name, Members: map[string]types.Scheme{}}
	}

	decls := make(map[string]*ast.ClassDecl)
	for _, mod := range prog.Modules {
		for _, decl := range mod.Classes {
			if _, dup := c.classes[decl.Name]; dup {
				c.bag.Error(diagnostic.CodeAmbiguousInstance, decl.Span,
					"class %q is already declared", decl.Name)
				continue
			}
			if _, dup := decls[decl.Name]; dup {
				c.bag.Error(diagnostic.CodeAmbiguousInstance, decl.Span,
					"class %q is already declared", decl.Name)
				continue
			}
			decls[decl.Name] = decl
		}
	}

	for name, decl := range decls {
		info := &ClassInfo{
			Name:    name,
			Supers:  decl.Supers,
			Members: make(map[string]types.Scheme),
		}
		param := c.freshVarID()
		tcx := newTypeContext()
		tcx.vars[decl.Param] = param
		for _, member := range decl.Members {
			t := c.convertTypeExpr(member.Type, tcx)
			info.Members[member.Name] = types.Scheme{
				Vars:        []types.VarID{param},
				Constraints: []types.ClassConstraint{{Class: name, Var: param}},
				Type:        t,
			}
		}
		c.classes[name] = info
	}

	// Inherit superclass members, guarding against cycles.
	for name := range decls {
		c.expandSupers(name, decls, map[string]bool{})
	}

	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for member := range c.classes[name].Members {
			if other, clash := c.memberClass[member]; clash && other != name {
				c.bag.Error(diagnostic.CodeAmbiguousInstance, decls[name].Span,
					"member %q is declared by both %q and %q", member, other, name)
				continue
			}
			c.memberClass[member] = name
		}
	}
}

func (c *Checker) expandSupers(name string, decls map[string]*ast.ClassDecl, path map[string]bool) {
	if path[name] {
		c.bag.Error(diagnostic.CodeAmbiguousInstance, decls[name].Span,
			"superclass cycle through %q", name)
		return
	}
	path[name] = true
	defer delete(path, name)

	info := c.classes[name]
	for _, super := range info.Supers {
		superInfo, ok := c.classes[super]
		if !ok {
			c.bag.Error(diagnostic.CodeUnknownType, decls[name].Span,
				"unknown superclass %q of %q", super, name)
			continue
		}
		if _, declared := decls[super]; declared {
			c.expandSupers(super, decls, path)
		}
		for member, scheme := range superInfo.Members {
			if _, shadowed := info.Members[member]; !shadowed {
				info.Members[member] = scheme
			}
		}
	}
}

// collectInstances registers instance heads. Member bodies are checked later
// in checkInstanceMembers, after all top-level schemes are known.
func (c *Checker) collectInstances(prog *ast.Program) {
	for _, mod := range prog.Modules {
		for _, decl := range mod.Instances {
			info := c.classes[decl.ClassName]
			if info == nil {
				c.bag.Error(diagnostic.CodeUnknownType, decl.Span,
					"instance of unknown class %q", decl.ClassName)
				continue
			}
			head, ok := instanceHead(decl.Head)
			if !ok {
				c.bag.Error(diagnostic.CodeAmbiguousInstance, decl.Span,
					"instance head must be a named type constructor")
				continue
			}
			if _, known := c.kinds[head]; !known {
				c.bag.Error(diagnostic.CodeUnknownType, decl.Head.Span(),
					"unknown type %q in instance head", head)
				continue
			}
			dup := false
			for _, have := range info.Instances {
				if have.HeadName == head {
					c.bag.Error(diagnostic.CodeAmbiguousInstance, decl.Span,
						"duplicate instance of %q for %q", decl.ClassName, head)
					dup = true
					break
				}
			}
			if dup {
				continue
			}

			inst := &InstanceInfo{
				Class:    decl.ClassName,
				HeadName: head,
				Members:  make(map[string]*ast.Def),
				Span:     decl.Span,
			}
			if adt, isADT := c.adtDecls[head]; isADT {
				for _, ctor := range adt.Constructors {
					inst.Tags = append(inst.Tags, ctor.Name)
				}
			}
			for _, member := range decl.Members {
				if _, declared := info.Members[member.Name]; !declared {
					c.bag.Error(diagnostic.CodeAmbiguousInstance, member.Span,
						"%q is not a member of class %q", member.Name, decl.ClassName)
					continue
				}
				if _, dup := inst.Members[member.Name]; dup {
					c.bag.Error(diagnostic.CodeAmbiguousInstance, member.Span,
						"duplicate member %q in instance", member.Name)
					continue
				}
				inst.Members[member.Name] = member
			}
			for member := range info.Members {
				if _, present := inst.Members[member]; !present {
					c.bag.Error(diagnostic.CodeAmbiguousInstance, decl.Span,
						"instance of %q for %q is missing member %q", decl.ClassName, head, member)
				}
			}
			info.Instances = append(info.Instances, inst)
		}
	}
}

// instanceHead extracts the head constructor name of an instance head type.
// Arguments must be type variables; the instance covers every application
// of the head.
func instanceHead(te ast.TypeExpr) (string, bool) {
	switch t := te.(type) {
	case *ast.TypeName:
		if isTypeVarName(t.Name) {
			return "", false
		}
		return t.Name, true
	case *ast.TypeApply:
		base, ok := t.Base.(*ast.TypeName)
		if !ok || isTypeVarName(base.Name) {
			return "", false
		}
		for _, arg := range t.Args {
			name, isName := arg.(*ast.TypeName)
			if !isName || !isTypeVarName(name.Name) {
				return "", false
			}
		}
		return base.Name, true
	default:
		return "", false
	}
}

// checkInstanceMembers checks every instance member body against the class
// member signature instantiated at the instance head.
func (c *Checker) checkInstanceMembers(prog *ast.Program) {
	for _, mod := range prog.Modules {
		for _, decl := range mod.Instances {
			info := c.classes[decl.ClassName]
			if info == nil {
				continue
			}
			var inst *InstanceInfo
			head, _ := instanceHead(decl.Head)
			for _, have := range info.Instances {
				if have.HeadName == head {
					inst = have
					break
				}
			}
			if inst == nil {
				continue
			}
			headType := c.headType(head)
			for name, def := range inst.Members {
				scheme := info.Members[name]
				expected := c.memberTypeAt(scheme, headType)
				c.checkMemberClause(def, expected)
			}
		}
	}
}

// headType builds the instance head applied to fresh variables per its kind.
func (c *Checker) headType(head string) types.Type {
	kind := c.kinds[head]
	args := make([]types.Type, kind.Arity)
	for i := range args {
		args[i] = c.freshVar()
	}
	return types.Con{Name: head, Args: args}
}

// memberTypeAt instantiates a class member scheme with the class parameter
// pinned to the instance head type.
func (c *Checker) memberTypeAt(s types.Scheme, head types.Type) types.Type {
	subst := make(map[types.VarID]types.Type, len(s.Vars))
	for _, v := range s.Vars {
		subst[v] = head
	}
	return substituteVars(s.Type, subst)
}

func (c *Checker) checkMemberClause(def *ast.Def, expected types.Type) {
	t := expected
	env := emptyScope()
	for _, param := range def.Params {
		arg := c.freshVar()
		res := c.freshVar()
		c.unify(t, types.Func{Param: arg, Result: res}, def.Span)
		env = c.bindPattern(param, arg, env)
		t = res
	}
	body := c.inferExpr(def.Body, env)
	c.unify(body, t, def.Body.Span())
}

// requireInstance checks that class has exactly one instance whose head
// matches t's head constructor. Called when a constrained variable is bound
// to a concrete type; unresolved variables keep their constraints and defer
// to runtime tag dispatch.
func (c *Checker) requireInstance(class string, t types.Type, sp position.Span) {
	var head string
	switch ty := t.(type) {
	case types.Con:
		head = ty.Name
	default:
		printer := types.NewPrinter()
		c.bag.Error(diagnostic.CodeAmbiguousInstance, sp,
			"no instance of %q for %s", class, printer.Print(t))
		return
	}
	for _, builtin := range builtinInstances[class] {
		if builtin == head {
			return
		}
	}
	info := c.classes[class]
	if info != nil {
		for _, inst := range info.Instances {
			if inst.HeadName == head {
				return
			}
		}
	}
	c.bag.Error(diagnostic.CodeAmbiguousInstance, sp,
		"no instance of %q for %q", class, head)
}
