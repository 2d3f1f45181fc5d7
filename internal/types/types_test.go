package types

import "testing"

func TestUnionFindIdempotentFind(t *testing.T) {
	u := NewUnionFind()
	for id := VarID(0); id < 8; id++ {
		first := u.Find(id)
		second := u.Find(id)
		if first != second {
			t.Fatalf("Find(%d) not idempotent: %d then %d", id, first, second)
		}
	}
}

func TestUnionFindEquivalencePersists(t *testing.T) {
	u := NewUnionFind()
	u.Union(1, 2)
	u.Union(2, 3)
	u.Union(7, 8)

	if u.Find(1) != u.Find(3) {
		t.Error("1 and 3 should share a representative after chained unions")
	}
	if u.Find(1) == u.Find(7) {
		t.Error("disjoint classes should have distinct representatives")
	}

	// Path compression must not change which variables are equivalent.
	before := map[VarID]VarID{}
	for id := VarID(1); id <= 8; id++ {
		before[id] = u.Find(id)
	}
	for id := VarID(1); id <= 8; id++ {
		if u.Find(id) != before[id] {
			t.Errorf("representative of %d changed after compression", id)
		}
	}
}

func TestUnionFindByRank(t *testing.T) {
	u := NewUnionFind()
	// Build a chain; representatives must stay consistent regardless of
	// union order.
	ids := []VarID{10, 11, 12, 13, 14, 15}
	for i := 1; i < len(ids); i++ {
		u.Union(ids[0], ids[i])
	}
	root := u.Find(ids[0])
	for _, id := range ids {
		if u.Find(id) != root {
			t.Errorf("Find(%d) = %d, want %d", id, u.Find(id), root)
		}
	}
}

func TestKindString(t *testing.T) {
	if got := KindStar.String(); got != "*" {
		t.Errorf("Star = %q", got)
	}
	if got := KindOfArity(2).String(); got != "* -> * -> *" {
		t.Errorf("arity 2 = %q", got)
	}
}

func TestPrinterStableNames(t *testing.T) {
	p := NewPrinter()
	a := Var{ID: 40}
	b := Var{ID: 41}
	fn := Func{Param: a, Result: Func{Param: b, Result: a}}
	if got := p.Print(fn); got != "'a -> 'b -> 'a" {
		t.Errorf("Print = %q, want %q", got, "'a -> 'b -> 'a")
	}
}

func TestPrinterCompound(t *testing.T) {
	p := NewPrinter()
	listOf := NewCon("List", NewCon("Int"))
	if got := p.Print(listOf); got != "List Int" {
		t.Errorf("Print = %q", got)
	}
	rec := Record{Fields: map[string]Type{"y": NewCon("Float"), "x": NewCon("Int")}}
	if got := p.Print(rec); got != "{ x: Int, y: Float }" {
		t.Errorf("Print = %q", got)
	}
	nested := Func{Param: Func{Param: NewCon("Int"), Result: NewCon("Int")}, Result: NewCon("Bool")}
	if got := p.Print(nested); got != "(Int -> Int) -> Bool" {
		t.Errorf("Print = %q", got)
	}
}

func TestCgTypeClosed(t *testing.T) {
	if !CgOf(CgInt).Closed() {
		t.Error("Int should be closed")
	}
	if CgOf(CgDynamic).Closed() {
		t.Error("Dynamic should not be closed")
	}
	open := CgArrow(CgOf(CgDynamic), CgOf(CgInt))
	if open.Closed() {
		t.Error("Int -> Dynamic should not be closed")
	}
	closed := CgArrow(CgOf(CgInt), CgOf(CgInt), CgOf(CgInt))
	if !closed.Closed() {
		t.Error("Int -> Int -> Int should be closed")
	}
	adt := CgType{
		Kind: CgAdt,
		Name: "Option",
		Constructors: []CgConstructor{
			{Name: "None"},
			{Name: "Some", Args: []CgType{CgOf(CgInt)}},
		},
	}
	if !adt.Closed() {
		t.Error("Option Int should be closed")
	}
	adt.Constructors[1].Args[0] = CgOf(CgDynamic)
	if adt.Closed() {
		t.Error("Option with dynamic payload should not be closed")
	}
}

func TestCgTypeMangleAndUncurry(t *testing.T) {
	fn := CgArrow(CgOf(CgInt), CgOf(CgInt), CgOf(CgInt))
	if got := fn.Mangle(); got != "i64_i64__i64" {
		t.Errorf("Mangle = %q", got)
	}
	args, result := fn.Uncurry()
	if len(args) != 2 || result.Kind != CgInt {
		t.Errorf("Uncurry = %v, %v", args, result)
	}
	ffn := CgArrow(CgOf(CgFloat), CgOf(CgFloat), CgOf(CgFloat))
	if got := ffn.Mangle(); got != "f64_f64__f64" {
		t.Errorf("Mangle = %q", got)
	}
}

func TestCgRecordOfSortsFields(t *testing.T) {
	rec := CgRecordOf(map[string]CgType{"b": CgOf(CgInt), "a": CgOf(CgText)})
	if rec.Fields[0] != "a" || rec.Fields[1] != "b" {
		t.Errorf("fields not sorted: %v", rec.Fields)
	}
	if rec.Args[0].Kind != CgText {
		t.Errorf("args not parallel to sorted fields")
	}
}
