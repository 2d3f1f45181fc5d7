package runtime

import "errors"

// ErrDivideByZero is the runtime error for integer division by zero.
var ErrDivideByZero = errors.New("runtime: divide by zero")

// PrimOp evaluates a binary primitive on boxed operands. Arithmetic is
// defined on matching Int or Float operands, ordering on Int, Float and
// Text, equality structurally on any data, "++" on lists and "<>" on text.
func PrimOp(op string, a, b *Handle) (*Handle, error) {
	av, bv := a.Value(), b.Value()
	switch op {
	case "+", "-", "*", "/":
		return arith(op, av, bv)
	case "==":
		return NewBool(Equal(a, b)), nil
	case "!=":
		return NewBool(!Equal(a, b)), nil
	case "<", "<=", ">", ">=":
		return compare(op, av, bv)
	case "&&":
		if av.Tag != TagBool || bv.Tag != TagBool {
			return nil, ErrBadOperand
		}
		return NewBool(av.Bool && bv.Bool), nil
	case "||":
		if av.Tag != TagBool || bv.Tag != TagBool {
			return nil, ErrBadOperand
		}
		return NewBool(av.Bool || bv.Bool), nil
	case "++":
		if av.Tag != TagList || bv.Tag != TagList {
			return nil, ErrBadOperand
		}
		items := make([]*Handle, 0, len(av.Items)+len(bv.Items))
		for _, it := range av.Items {
			items = append(items, it.Clone())
		}
		for _, it := range bv.Items {
			items = append(items, it.Clone())
		}
		return NewList(items), nil
	case "<>":
		if av.Tag != TagText || bv.Tag != TagText {
			return nil, ErrBadOperand
		}
		return NewText(av.Text + bv.Text), nil
	default:
		return nil, ErrBadOperand
	}
}

func arith(op string, av, bv *Value) (*Handle, error) {
	switch {
	case av.Tag == TagInt && bv.Tag == TagInt:
		switch op {
		case "+":
			return NewInt(av.Int + bv.Int), nil
		case "-":
			return NewInt(av.Int - bv.Int), nil
		case "*":
			return NewInt(av.Int * bv.Int), nil
		default:
			if bv.Int == 0 {
				return nil, ErrDivideByZero
			}
			return NewInt(av.Int / bv.Int), nil
		}
	case av.Tag == TagFloat && bv.Tag == TagFloat:
		switch op {
		case "+":
			return NewFloat(av.Float + bv.Float), nil
		case "-":
			return NewFloat(av.Float - bv.Float), nil
		case "*":
			return NewFloat(av.Float * bv.Float), nil
		default:
			return NewFloat(av.Float / bv.Float), nil
		}
	default:
		return nil, ErrBadOperand
	}
}

func compare(op string, av, bv *Value) (*Handle, error) {
	var less, eq bool
	switch {
	case av.Tag == TagInt && bv.Tag == TagInt:
		less, eq = av.Int < bv.Int, av.Int == bv.Int
	case av.Tag == TagFloat && bv.Tag == TagFloat:
		less, eq = av.Float < bv.Float, av.Float == bv.Float
	case av.Tag == TagText && bv.Tag == TagText:
		less, eq = av.Text < bv.Text, av.Text == bv.Text
	default:
		return nil, ErrBadOperand
	}
	switch op {
	case "<":
		return NewBool(less), nil
	case "<=":
		return NewBool(less || eq), nil
	case ">":
		return NewBool(!less && !eq), nil
	default:
		return NewBool(!less), nil
	}
}
