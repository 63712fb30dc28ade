package metadata

import (
	"bytes"
	"encoding/json"
	"math/big"
)

// Kind is the shape of a decoded Value.
type Kind int

const (
	// Absent is the zero Kind: nothing was there to decode.
	Absent Kind = iota
	Number
	String
	Seq
	Map
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Seq:
		return "seq"
	case Map:
		return "map"
	}
	return "absent"
}

// Value is decoded metadata. The zero Value is Absent, so a missing
// entry can always be told apart from one that is present but empty.
type Value struct {
	kind    Kind
	num     *big.Int
	str     string
	items   []Value
	keys    []string
	entries map[string]Value
}

// Entry is a key and value of a Map.
type Entry struct {
	Key   string
	Value Value
}

func NumberValue(n *big.Int) Value {
	return Value{kind: Number, num: n}
}

func StringValue(s string) Value {
	return Value{kind: String, str: s}
}

func SeqValue(items ...Value) Value {
	return Value{kind: Seq, items: append([]Value{}, items...)}
}

// Object builds a Map. A later entry with the same key overwrites the
// earlier value but keeps its position.
func Object(entries ...Entry) Value {
	v := Value{kind: Map, entries: make(map[string]Value, len(entries))}
	for _, e := range entries {
		if _, ok := v.entries[e.Key]; !ok {
			v.keys = append(v.keys, e.Key)
		}
		v.entries[e.Key] = e.Value
	}
	return v
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsAbsent() bool {
	return v.kind == Absent
}

func (v Value) Number() (*big.Int, bool) {
	return v.num, v.kind == Number
}

func (v Value) Text() (string, bool) {
	return v.str, v.kind == String
}

func (v Value) Items() ([]Value, bool) {
	return v.items, v.kind == Seq
}

// Keys returns the keys of a Map in insertion order.
func (v Value) Keys() []string {
	return v.keys
}

// Get returns the value at key, or Absent if v is not a Map or has no
// such key.
func (v Value) Get(key string) Value {
	if v.kind != Map {
		return Value{}
	}
	return v.entries[key]
}

// Index returns the i-th element, or Absent if v is not a Seq or is
// too short.
func (v Value) Index(i int) Value {
	if v.kind != Seq || i < 0 || i >= len(v.items) {
		return Value{}
	}
	return v.items[i]
}

// Len is the number of elements of a Seq or entries of a Map.
func (v Value) Len() int {
	switch v.kind {
	case Seq:
		return len(v.items)
	case Map:
		return len(v.keys)
	}
	return 0
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Number:
		return []byte(v.num.String()), nil
	case String:
		return json.Marshal(v.str)
	case Seq:
		return json.Marshal(v.items)
	case Map:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.entries[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}
