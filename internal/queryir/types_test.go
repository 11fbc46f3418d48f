package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect_ImplementsQuery(t *testing.T) {
	var q Query = Select{From: "things"}
	assert.NotNil(t, q)

	switch q.(type) {
	case Select:
	default:
		t.Fatal("unexpected type")
	}
}

func TestAllOf_Flattens(t *testing.T) {
	a := Cmp(OpEq, &Column{Name: "a"}, &Literal{Value: int64(1)})
	b := Cmp(OpEq, &Column{Name: "b"}, &Literal{Value: int64(2)})
	c := Cmp(OpEq, &Column{Name: "c"}, &Literal{Value: int64(3)})

	got := AllOf(a, nil, AllOf(b, c))

	assert.Equal(t, []Predicate{a, b, c}, got.Predicates, "nested And and nil are flattened")
}

func TestAnyOf_Flattens(t *testing.T) {
	a := &Truth{Value: true}
	b := &Truth{Value: false}

	got := AnyOf(AnyOf(a), b, nil)

	assert.Equal(t, []Predicate{a, b}, got.Predicates)
}

func TestPredicates_ImplementPredicate(t *testing.T) {
	preds := []Predicate{
		Compare{}, &Compare{},
		And{}, &And{},
		Or{}, &Or{},
		Not{}, &Not{},
		Truth{}, &Truth{},
		Match{}, &Match{},
		In{}, &In{},
	}
	assert.Len(t, preds, 14)

	operands := []Operand{
		Column{}, &Column{},
		Literal{}, &Literal{},
		JSONPath{}, &JSONPath{},
		Arith{}, &Arith{},
		Func{}, &Func{},
		Related{}, &Related{},
	}
	assert.Len(t, operands, 12)
}
