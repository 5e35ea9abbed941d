// Package canon implements the canonical byte encoding used as the input to
// every hash in this module.
//
// The encoding is JSON-like but one-way: it is never parsed back. It only has
// to be deterministic and injective over values whose object keys are unique.
// Floating-point values are not representable; callers scale to an integer
// (for example micro-units) before building a Value.
package canon

import (
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable canonical value.
//
// The zero Value is Null. Object fields are kept sorted by key bytes, so
// encoding never has to sort.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	u      uint64
	s      string
	arr    []Value
	fields []Field
}

// Field is one key/value pair of an object.
type Field struct {
	Key   string
	Value Value
}

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int64(n int64) Value     { return Value{kind: KindInt64, i: n} }
func Uint64(n uint64) Value   { return Value{kind: KindUint64, u: n} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: append([]Value(nil), vs...)} }

// Object builds an object value from m. Keys are sorted ascending by byte value.
func Object(m map[string]Value) Value {
	fields := make([]Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, Field{Key: k, Value: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return Value{kind: KindObject, fields: fields}
}

func (v Value) Kind() Kind { return v.kind }

// AsBool, AsInt64, AsUint64 and AsString return the payload and whether v
// holds that variant.
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)   { return v.i, v.kind == KindInt64 }
func (v Value) AsUint64() (uint64, bool) { return v.u, v.kind == KindUint64 }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Elems returns a copy of the array elements, or nil if v is not an array.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value(nil), v.arr...)
}

// Fields returns a copy of the object fields in key order, or nil if v is not
// an object.
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	return append([]Field(nil), v.fields...)
}

// Get returns the object field named key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i := sort.Search(len(v.fields), func(i int) bool { return v.fields[i].Key >= key })
	if i < len(v.fields) && v.fields[i].Key == key {
		return v.fields[i].Value, true
	}
	return Value{}, false
}

// ObjectBuilder accumulates object fields in any order. A later Set with the
// same key replaces the earlier value, so the built object always has unique keys.
type ObjectBuilder struct {
	m map[string]Value
}

func NewObject() *ObjectBuilder { return &ObjectBuilder{m: make(map[string]Value)} }

func (b *ObjectBuilder) Set(key string, v Value) *ObjectBuilder {
	b.m[key] = v
	return b
}

func (b *ObjectBuilder) Str(key, s string) *ObjectBuilder        { return b.Set(key, String(s)) }
func (b *ObjectBuilder) I64(key string, n int64) *ObjectBuilder  { return b.Set(key, Int64(n)) }
func (b *ObjectBuilder) U64(key string, n uint64) *ObjectBuilder { return b.Set(key, Uint64(n)) }
func (b *ObjectBuilder) Flag(key string, f bool) *ObjectBuilder  { return b.Set(key, Bool(f)) }

func (b *ObjectBuilder) Build() Value { return Object(b.m) }

// Encode returns the canonical bytes of v.
func Encode(v Value) []byte {
	return AppendEncode(nil, v)
}

// AppendEncode appends the canonical bytes of v to dst.
func AppendEncode(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if v.b {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindInt64:
		return strconv.AppendInt(dst, v.i, 10)
	case KindUint64:
		return strconv.AppendUint(dst, v.u, 10)
	case KindString:
		return appendString(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.arr {
			if i != 0 {
				dst = append(dst, ',')
			}
			dst = AppendEncode(dst, e)
		}
		return append(dst, ']')
	case KindObject:
		dst = append(dst, '{')
		for i, f := range v.fields {
			if i != 0 {
				dst = append(dst, ',')
			}
			dst = appendString(dst, f.Key)
			dst = append(dst, ':')
			dst = AppendEncode(dst, f.Value)
		}
		return append(dst, '}')
	default:
		return dst
	}
}

// appendString quotes s. Only backslash, quote, LF, CR and TAB are escaped;
// every other byte is copied verbatim, including invalid UTF-8.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '"':
			dst = append(dst, '\\', '"')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}
