package metadata

import (
	"math/big"
	"sort"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

var ErrMapKeyNotBytes = errors.New("map key has no byte payload")

// Decode flattens a TaggedValue tree into a Value.
//
// Observed datums sometimes populate more than one payload on the same
// node, so the order in which payloads are checked matters: struct
// fields, then map, int, bytes and finally list. A node with none of
// them decodes to Absent.
func Decode(node TaggedValue) (Value, error) {
	switch {
	case node.Fields != nil:
		return decodeSeq(node.Fields)
	case node.Map != nil:
		entries := make([]Entry, 0, len(node.Map))
		for i, pair := range node.Map {
			if pair.K.Bytes == nil {
				return Value{}, errors.Wrapf(ErrMapKeyNotBytes, "map entry %d", i)
			}
			val, err := Decode(pair.V)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Entry{Key: HexToString(*pair.K.Bytes), Value: val})
		}
		return Object(entries...), nil
	case node.Int != nil:
		return NumberValue(new(big.Int).Set(node.Int)), nil
	case node.Bytes != nil:
		return StringValue(HexToString(*node.Bytes)), nil
	case node.List != nil:
		return decodeSeq(node.List)
	}
	return Value{}, nil
}

func decodeSeq(nodes []TaggedValue) (Value, error) {
	items := make([]Value, len(nodes))
	for i, n := range nodes {
		v, err := Decode(n)
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	return SeqValue(items...), nil
}

// DecodeTopLevel decodes each label of a CIP68 metadata object (e.g.
// "100", "222") into a Map keyed by label. If any label fails to
// decode the failure is logged and the whole result is an empty Map:
// a partially decoded datum is never handed on.
func DecodeTopLevel(raw map[string]TaggedValue, logger log.Logger) Value {
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	entries := make([]Entry, 0, len(labels))
	var failed error
	for _, label := range labels {
		v, err := Decode(raw[label])
		if err != nil {
			failed = errors.Wrapf(err, "decoding label %s", label)
			continue
		}
		entries = append(entries, Entry{Key: label, Value: v})
	}
	if failed != nil {
		logger.Log("err", failed)
		return Object()
	}
	return Object(entries...)
}

// HexToString decodes hex two digits at a time into one character per
// byte, the character's code point being the byte value. It is
// deliberately not UTF-8 aware. A pair that does not start with a hex
// digit yields U+0000, and a trailing odd digit is decoded on its own.
func HexToString(hex string) string {
	var sb strings.Builder
	for i := 0; i < len(hex); i += 2 {
		hi, ok := hexDigit(hex[i])
		if !ok {
			sb.WriteRune(0)
			continue
		}
		b := hi
		if i+1 < len(hex) {
			if lo, ok := hexDigit(hex[i+1]); ok {
				b = hi<<4 | lo
			}
		}
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
