package eval

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"

	"github.com/evanw/packcore/internal/graph"
)

type exprType uint8

const (
	typeUnknown exprType = iota
	typeUndefined
	typeNull
	typeString
	typeNumber
	typeBoolean
	typeRegExp
	typeConditional
	typeArray
	typeConstArray
	typeBigInt
	typeTemplateString
)

type TemplateStringKind uint8

const (
	TemplateStringCooked TemplateStringKind = iota
	TemplateStringRaw
)

// The result of statically evaluating an expression. Most fields are only
// meaningful for one type. A new expression has unknown type and is assumed
// to have side effects.
type BasicEvaluatedExpression struct {
	Range    graph.Span
	HasRange bool

	ty          exprType
	falsy       bool
	truthy      bool
	sideEffects bool
	nullish     *bool

	boolean bool
	number  float64
	str     string
	bigint  *big.Int
	regexp  [2]string

	items   []*BasicEvaluatedExpression
	quasis  []*BasicEvaluatedExpression
	parts   []*BasicEvaluatedExpression
	options []*BasicEvaluatedExpression

	templateStringKind TemplateStringKind
}

func New() *BasicEvaluatedExpression {
	return &BasicEvaluatedExpression{sideEffects: true}
}

func WithRange(start uint32, end uint32) *BasicEvaluatedExpression {
	e := New()
	e.SetRange(start, end)
	return e
}

func (e *BasicEvaluatedExpression) IsUnknown() bool        { return e.ty == typeUnknown }
func (e *BasicEvaluatedExpression) IsNull() bool           { return e.ty == typeNull }
func (e *BasicEvaluatedExpression) IsUndefined() bool      { return e.ty == typeUndefined }
func (e *BasicEvaluatedExpression) IsString() bool         { return e.ty == typeString }
func (e *BasicEvaluatedExpression) IsNumber() bool         { return e.ty == typeNumber }
func (e *BasicEvaluatedExpression) IsBool() bool           { return e.ty == typeBoolean }
func (e *BasicEvaluatedExpression) IsRegExp() bool         { return e.ty == typeRegExp }
func (e *BasicEvaluatedExpression) IsConditional() bool    { return e.ty == typeConditional }
func (e *BasicEvaluatedExpression) IsArray() bool          { return e.ty == typeArray }
func (e *BasicEvaluatedExpression) IsBigInt() bool         { return e.ty == typeBigInt }
func (e *BasicEvaluatedExpression) IsTemplateString() bool { return e.ty == typeTemplateString }

func (e *BasicEvaluatedExpression) IsCompileTimeValue() bool {
	switch e.ty {
	case typeUndefined, typeNull, typeString, typeNumber, typeBoolean, typeRegExp, typeConstArray, typeBigInt:
		return true
	}
	return false
}

// The second return value is false if it's not known
func (e *BasicEvaluatedExpression) IsPrimitiveType() (bool, bool) {
	switch e.ty {
	case typeUndefined, typeNull, typeString, typeNumber, typeBoolean, typeBigInt, typeTemplateString:
		return true, true
	case typeRegExp, typeArray, typeConstArray:
		return false, true
	}
	return false, false
}

func (e *BasicEvaluatedExpression) CouldHaveSideEffects() bool {
	return e.sideEffects
}

func (e *BasicEvaluatedExpression) SetSideEffects(sideEffects bool) {
	e.sideEffects = sideEffects
}

func (e *BasicEvaluatedExpression) SetRange(start uint32, end uint32) {
	e.Range = graph.Span{Start: start, End: end}
	e.HasRange = true
}

func (e *BasicEvaluatedExpression) SetTruthy() {
	e.falsy = false
	e.truthy = true
	e.nullish = nil
}

func (e *BasicEvaluatedExpression) SetFalsy() {
	e.falsy = true
	e.truthy = false
}

func (e *BasicEvaluatedExpression) SetNullish(nullish bool) {
	e.nullish = &nullish
	if nullish {
		e.SetFalsy()
	}
}

func (e *BasicEvaluatedExpression) SetUndefined() {
	e.ty = typeUndefined
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetNull() {
	e.ty = typeNull
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetString(value string) {
	e.ty = typeString
	e.str = value
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetNumber(value float64) {
	e.ty = typeNumber
	e.number = value
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetBool(value bool) {
	e.ty = typeBoolean
	e.boolean = value
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetBigInt(value *big.Int) {
	e.ty = typeBigInt
	e.bigint = value
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetRegExp(pattern string, flags string) {
	e.ty = typeRegExp
	e.regexp = [2]string{pattern, flags}
	e.sideEffects = false
}

func (e *BasicEvaluatedExpression) SetItems(items []*BasicEvaluatedExpression) {
	e.ty = typeArray
	e.items = items
	e.sideEffects = false
	for _, item := range items {
		if item.sideEffects {
			e.sideEffects = true
			break
		}
	}
}

func (e *BasicEvaluatedExpression) SetOptions(options []*BasicEvaluatedExpression) {
	e.ty = typeConditional
	e.options = options
	e.sideEffects = true
}

func (e *BasicEvaluatedExpression) AddOptions(options []*BasicEvaluatedExpression) {
	if e.ty != typeConditional {
		e.SetOptions(options)
		return
	}
	e.options = append(e.options, options...)
}

func (e *BasicEvaluatedExpression) SetTemplateString(quasis []*BasicEvaluatedExpression, parts []*BasicEvaluatedExpression, kind TemplateStringKind) {
	e.ty = typeTemplateString
	e.quasis = quasis
	e.parts = parts
	e.templateStringKind = kind
	e.sideEffects = false
	for _, part := range parts {
		if part.sideEffects {
			e.sideEffects = true
			break
		}
	}
}

func (e *BasicEvaluatedExpression) StringValue() string                  { return e.str }
func (e *BasicEvaluatedExpression) Number() float64                      { return e.number }
func (e *BasicEvaluatedExpression) Bool() bool                           { return e.boolean }
func (e *BasicEvaluatedExpression) BigInt() *big.Int                     { return e.bigint }
func (e *BasicEvaluatedExpression) RegExp() (string, string)             { return e.regexp[0], e.regexp[1] }
func (e *BasicEvaluatedExpression) Items() []*BasicEvaluatedExpression   { return e.items }
func (e *BasicEvaluatedExpression) Options() []*BasicEvaluatedExpression { return e.options }
func (e *BasicEvaluatedExpression) Parts() []*BasicEvaluatedExpression   { return e.parts }
func (e *BasicEvaluatedExpression) Quasis() []*BasicEvaluatedExpression  { return e.quasis }

func (e *BasicEvaluatedExpression) TemplateStringKind() TemplateStringKind {
	return e.templateStringKind
}

// The string value of booleans, null, and strings
func (e *BasicEvaluatedExpression) AsString() (string, bool) {
	switch e.ty {
	case typeBoolean:
		return strconv.FormatBool(e.boolean), true
	case typeNull:
		return "null", true
	case typeString:
		return e.str, true
	}
	return "", false
}

func (e *BasicEvaluatedExpression) AsBool() (bool, bool) {
	if e.truthy {
		return true, true
	}
	if e.falsy || (e.nullish != nil && *e.nullish) {
		return false, true
	}
	if e.ty == typeBoolean {
		return e.boolean, true
	}
	return false, false
}

func (e *BasicEvaluatedExpression) AsNullish() (bool, bool) {
	if (e.nullish != nil && *e.nullish) || e.ty == typeNull || e.ty == typeUndefined {
		return true, true
	}
	if (e.nullish != nil && !*e.nullish) || e.ty == typeBoolean || e.ty == typeString || e.ty == typeTemplateString {
		return false, true
	}
	return false, false
}

// Only valid for compile-time values. Regular expressions never compare
// equal because each literal creates a new object.
func (e *BasicEvaluatedExpression) CompareCompileTimeValue(other *BasicEvaluatedExpression) bool {
	if e.ty != other.ty {
		return false
	}
	switch e.ty {
	case typeUndefined, typeNull:
		return true
	case typeString:
		return e.str == other.str
	case typeNumber:
		return e.number == other.number
	case typeBoolean:
		return e.boolean == other.boolean
	case typeRegExp:
		return false
	case typeBigInt:
		return e.bigint.Cmp(other.bigint) == 0
	}
	panic(graph.InvariantError{Text: "can only compare compile-time values"})
}

// Renders a compile-time value as JavaScript source
func (e *BasicEvaluatedExpression) Code() (string, bool) {
	switch e.ty {
	case typeUndefined:
		return "undefined", true
	case typeNull:
		return "null", true
	case typeBoolean:
		return strconv.FormatBool(e.boolean), true
	case typeString:
		bytes, err := json.Marshal(e.str)
		if err != nil {
			return "", false
		}
		return string(bytes), true
	case typeNumber:
		switch {
		case math.IsNaN(e.number):
			return "NaN", true
		case math.IsInf(e.number, 1):
			return "Infinity", true
		case math.IsInf(e.number, -1):
			return "-Infinity", true
		}
		return strconv.FormatFloat(e.number, 'g', -1, 64), true
	case typeBigInt:
		return e.bigint.String() + "n", true
	case typeRegExp:
		if !IsValidRegExpFlags(e.regexp[1]) {
			return "", false
		}
		return "/" + e.regexp[0] + "/" + e.regexp[1], true
	}
	return "", false
}

func EvaluateToString(value string, start uint32, end uint32) *BasicEvaluatedExpression {
	e := WithRange(start, end)
	e.SetString(value)
	return e
}

// Only "g", "i", "m", and "y" are accepted, each at most once
func IsValidRegExpFlags(flags string) bool {
	if len(flags) > 4 {
		return false
	}
	seen := uint8(0)
	for i := 0; i < len(flags); i++ {
		var bit uint8
		switch flags[i] {
		case 'y':
			bit = 1
		case 'm':
			bit = 2
		case 'i':
			bit = 4
		case 'g':
			bit = 8
		default:
			return false
		}
		if seen&bit != 0 {
			return false
		}
		seen |= bit
	}
	return true
}
