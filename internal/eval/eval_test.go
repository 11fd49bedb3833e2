package eval_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/evanw/packcore/internal/eval"
	"github.com/evanw/packcore/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRegExpFlags(t *testing.T) {
	for flags, expected := range map[string]bool{
		"":      true,
		"g":     true,
		"gimy":  true,
		"ymig":  true,
		"gg":    false,
		"gimyg": false,
		"u":     false,
		"gx":    false,
	} {
		test.AssertEqual(t, eval.IsValidRegExpFlags(flags), expected)
	}
}

func TestCode(t *testing.T) {
	check := func(e *eval.BasicEvaluatedExpression, expected string) {
		t.Helper()
		code, ok := e.Code()
		require.True(t, ok)
		test.AssertEqual(t, code, expected)
	}

	e := eval.New()
	_, ok := e.Code()
	assert.False(t, ok)
	assert.True(t, e.CouldHaveSideEffects())

	check(eval.EvaluateToString("a\"b", 0, 4), `"a\"b"`)

	e = eval.New()
	e.SetNumber(1.5)
	check(e, "1.5")
	e.SetNumber(math.Inf(-1))
	check(e, "-Infinity")

	e = eval.New()
	e.SetBigInt(big.NewInt(42))
	check(e, "42n")

	e = eval.New()
	e.SetRegExp("a+", "gi")
	check(e, "/a+/gi")
	e.SetRegExp("a+", "gg")
	_, ok = e.Code()
	assert.False(t, ok)

	e = eval.New()
	e.SetUndefined()
	check(e, "undefined")
	assert.False(t, e.CouldHaveSideEffects())
}

func TestAsBoolAndNullish(t *testing.T) {
	e := eval.New()
	_, ok := e.AsBool()
	assert.False(t, ok)

	e.SetNullish(true)
	value, ok := e.AsBool()
	assert.True(t, ok)
	assert.False(t, value)

	e = eval.New()
	e.SetString("x")
	nullish, ok := e.AsNullish()
	assert.True(t, ok)
	assert.False(t, nullish)

	e = eval.New()
	e.SetNull()
	text, ok := e.AsString()
	assert.True(t, ok)
	assert.Equal(t, "null", text)
}

func TestCompareCompileTimeValue(t *testing.T) {
	a := eval.New()
	a.SetString("x")
	b := eval.New()
	b.SetString("x")
	assert.True(t, a.CompareCompileTimeValue(b))

	b.SetNumber(1)
	assert.False(t, a.CompareCompileTimeValue(b))

	r1, r2 := eval.New(), eval.New()
	r1.SetRegExp("a", "")
	r2.SetRegExp("a", "")
	assert.False(t, r1.CompareCompileTimeValue(r2))

	c1, c2 := eval.New(), eval.New()
	c1.SetOptions(nil)
	c2.SetOptions(nil)
	assert.Panics(t, func() { c1.CompareCompileTimeValue(c2) })
}

func TestSideEffectsOfComposites(t *testing.T) {
	pure := eval.New()
	pure.SetNumber(1)
	impure := eval.New()

	array := eval.New()
	array.SetItems([]*eval.BasicEvaluatedExpression{pure})
	assert.False(t, array.CouldHaveSideEffects())
	array.SetItems([]*eval.BasicEvaluatedExpression{pure, impure})
	assert.True(t, array.CouldHaveSideEffects())

	tpl := eval.New()
	tpl.SetTemplateString(nil, []*eval.BasicEvaluatedExpression{pure}, eval.TemplateStringCooked)
	assert.True(t, tpl.IsTemplateString())
	assert.False(t, tpl.CouldHaveSideEffects())
}
