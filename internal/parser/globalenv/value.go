package globalenv

// Value is one decoded environment value. The concrete types are String,
// Number, Bool, BigInt, Null, *Object, Array and Opaque.
type Value interface {
	isValue()
}

// String is a decoded string literal.
type String string

// Number is a decoded numeric literal.
type Number float64

// Bool is a decoded true or false.
type Bool bool

// BigInt is a bigint literal, kept as its decimal digits.
type BigInt string

// Null is the null literal.
type Null struct{}

// Array is a decoded array literal.
type Array []Value

// Opaque is an expression that was not evaluated, such as a call or an
// identifier. Source is its verbatim text.
type Opaque struct {
	Source string
}

// Member is one key of an object literal.
type Member struct {
	Key   string
	Value Value
}

// Object is a decoded object literal. Members keep their source order.
type Object struct {
	Members []Member
}

func (String) isValue()  {}
func (Number) isValue()  {}
func (Bool) isValue()    {}
func (BigInt) isValue()  {}
func (Null) isValue()    {}
func (Array) isValue()   {}
func (Opaque) isValue()  {}
func (*Object) isValue() {}

// Get returns the value of the last member named key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	for i := len(o.Members) - 1; i >= 0; i-- {
		if o.Members[i].Key == key {
			return o.Members[i].Value, true
		}
	}
	return nil, false
}

// Keys returns the member keys in source order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = m.Key
	}
	return keys
}

// IsLiteral reports whether v was fully decoded, i.e. is not Opaque.
func IsLiteral(v Value) bool {
	_, opaque := v.(Opaque)
	return !opaque
}

// ToJSON converts v to plain Go values for encoding/json. Opaque values
// become {"expression": source}.
func ToJSON(v Value) any {
	switch v := v.(type) {
	case String:
		return string(v)
	case Number:
		return float64(v)
	case Bool:
		return bool(v)
	case BigInt:
		return string(v)
	case Null:
		return nil
	case Array:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ToJSON(e)
		}
		return out
	case *Object:
		out := make(map[string]any, len(v.Members))
		for _, m := range v.Members {
			out[m.Key] = ToJSON(m.Value)
		}
		return out
	case Opaque:
		return map[string]any{"expression": v.Source}
	}
	return nil
}
