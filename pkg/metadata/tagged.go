package metadata

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// TaggedValue is one node of the on-chain data encoding. Exactly one
// payload is populated on well-formed nodes; a nil slice or pointer
// means the payload is not there, while an empty slice is a payload
// that happens to be empty.
type TaggedValue struct {
	// Constructor is the alternative of a Struct node, if known.
	Constructor *uint64
	Fields      []TaggedValue
	Map         []Pair
	Int         *big.Int
	// Bytes is hex encoded.
	Bytes *string
	List  []TaggedValue
}

// Pair is one entry of a Map node.
type Pair struct {
	K TaggedValue `json:"k"`
	V TaggedValue `json:"v"`
}

func NewInt(n int64) TaggedValue {
	return TaggedValue{Int: big.NewInt(n)}
}

func NewBytes(hex string) TaggedValue {
	return TaggedValue{Bytes: &hex}
}

func NewList(items ...TaggedValue) TaggedValue {
	return TaggedValue{List: append([]TaggedValue{}, items...)}
}

func NewStruct(constructor uint64, fields ...TaggedValue) TaggedValue {
	return TaggedValue{Constructor: &constructor, Fields: append([]TaggedValue{}, fields...)}
}

func NewMap(pairs ...Pair) TaggedValue {
	return TaggedValue{Map: append([]Pair{}, pairs...)}
}

// UnmarshalJSON accepts the chain index's JSON rendering of a datum,
// e.g. {"constructor":0,"fields":[{"int":1}]}. A JSON string is taken
// to be the hex encoded CBOR of the datum instead.
func (v *TaggedValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var datum string
		if err := json.Unmarshal(data, &datum); err != nil {
			return err
		}
		parsed, err := ParseDatum(datum)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}

	var wire struct {
		Constructor *uint64         `json:"constructor"`
		Fields      []TaggedValue   `json:"fields"`
		Map         []Pair          `json:"map"`
		Int         json.RawMessage `json:"int"`
		Bytes       *string         `json:"bytes"`
		List        []TaggedValue   `json:"list"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := TaggedValue{
		Constructor: wire.Constructor,
		Fields:      wire.Fields,
		Map:         wire.Map,
		Bytes:       wire.Bytes,
		List:        wire.List,
	}
	if len(wire.Int) > 0 && !bytes.Equal(wire.Int, []byte("null")) {
		// The index renders integers beyond 2^53 as strings.
		literal := strings.Trim(string(wire.Int), `"`)
		n, ok := new(big.Int).SetString(literal, 10)
		if !ok {
			return errors.Errorf("invalid int payload %s", wire.Int)
		}
		out.Int = n
	}
	*v = out
	return nil
}
