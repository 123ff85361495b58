package types

import "strconv"

// ValueKind identifies which field of a Value is populated.
type ValueKind uint8

const (
	// KindNull is an explicit missing value.
	KindNull ValueKind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	// KindVocab references a vocabulary entry by key. The display string is
	// resolved by the emitters, never stored on the event.
	KindVocab
)

// Value is a typed event parameter value in the GA4 export model.
type Value struct {
	Kind  ValueKind
	Str   string // string payload, or the vocabulary key for KindVocab
	Int   int64
	Float float64
	Bool  bool
}

// String builds a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int builds an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Double builds a floating point value.
func Double(f float64) Value { return Value{Kind: KindDouble, Float: f} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null builds an explicit null value.
func Null() Value { return Value{Kind: KindNull} }

// VocabRef builds a reference to the vocabulary entry with the given key.
func VocabRef(key string) Value { return Value{Kind: KindVocab, Str: key} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Format renders the value as it appears in flattened (CSV) output.
// Vocabulary references are rendered through resolve; a nil resolve
// renders the key itself.
func (v Value) Format(resolve func(key string) string) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return FormatFloat(v.Float)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindVocab:
		if resolve == nil {
			return v.Str
		}
		return resolve(v.Str)
	default:
		return ""
	}
}

// Number returns the numeric payload of an int or double value.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindDouble:
		return v.Float, true
	default:
		return 0, false
	}
}

// Param is a single keyed event parameter.
type Param struct {
	Key   string
	Value Value
}

// FormatFloat renders a float with the shortest decimal representation that
// round-trips, without exponent notation.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
