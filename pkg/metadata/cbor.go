package metadata

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/big"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// CBOR major types.
const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6
)

// Plutus data constructor tags.
const (
	tagPosBignum     = 2
	tagNegBignum     = 3
	tagConstrGeneral = 102
	tagConstrSmall   = 121 // alternatives 0-6
	tagConstrLarge   = 1280
	cborBreak        = 0xff
)

// ParseDatum decodes a hex encoded Plutus data CBOR item, e.g. an
// inline datum.
func ParseDatum(cborHex string) (TaggedValue, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(cborHex))
	if err != nil {
		return TaggedValue{}, errors.Wrap(err, "datum is not hex")
	}
	var v TaggedValue
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return TaggedValue{}, errors.Wrap(err, "decoding datum CBOR")
	}
	return v, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler for Plutus data.
func (v *TaggedValue) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return io.ErrUnexpectedEOF
	}
	switch data[0] >> 5 {
	case majorUint, majorNegInt:
		return v.setInt(data)
	case majorBytes:
		var b []byte
		if err := cbor.Unmarshal(data, &b); err != nil {
			return err
		}
		s := hex.EncodeToString(b)
		*v = TaggedValue{Bytes: &s}
		return nil
	case majorArray:
		items, err := unmarshalItems(data)
		if err != nil {
			return err
		}
		*v = TaggedValue{List: items}
		return nil
	case majorMap:
		pairs, err := unmarshalPairs(data)
		if err != nil {
			return err
		}
		*v = TaggedValue{Map: pairs}
		return nil
	case majorTag:
		var tag cbor.RawTag
		if err := cbor.Unmarshal(data, &tag); err != nil {
			return err
		}
		return v.setTagged(data, tag)
	}
	return errors.Errorf("unsupported CBOR major type %d in datum", data[0]>>5)
}

func (v *TaggedValue) setInt(data []byte) error {
	var n big.Int
	if err := cbor.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = TaggedValue{Int: &n}
	return nil
}

func (v *TaggedValue) setTagged(data []byte, tag cbor.RawTag) error {
	var alt uint64
	var content []byte
	switch {
	case tag.Number == tagPosBignum || tag.Number == tagNegBignum:
		return v.setInt(data)
	case tag.Number >= tagConstrSmall && tag.Number < tagConstrSmall+7:
		alt, content = tag.Number-tagConstrSmall, tag.Content
	case tag.Number >= tagConstrLarge && tag.Number <= tagConstrLarge+120:
		alt, content = tag.Number-tagConstrLarge+7, tag.Content
	case tag.Number == tagConstrGeneral:
		var general struct {
			_      struct{} `cbor:",toarray"`
			Alt    uint64
			Fields cbor.RawMessage
		}
		if err := cbor.Unmarshal(tag.Content, &general); err != nil {
			return errors.Wrap(err, "decoding general constructor")
		}
		alt, content = general.Alt, general.Fields
	default:
		return errors.Errorf("unsupported CBOR tag %d in datum", tag.Number)
	}

	fields, err := unmarshalItems(content)
	if err != nil {
		return errors.Wrapf(err, "decoding fields of constructor %d", alt)
	}
	*v = TaggedValue{Constructor: &alt, Fields: fields}
	return nil
}

func unmarshalItems(data []byte) ([]TaggedValue, error) {
	var items []TaggedValue
	if err := cbor.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []TaggedValue{}
	}
	return items, nil
}

// unmarshalPairs walks a CBOR map by hand, since decoding into a Go
// map would lose the entry order.
func unmarshalPairs(data []byte) ([]Pair, error) {
	count, rest, indefinite, err := itemHeader(data)
	if err != nil {
		return nil, err
	}
	pairs := []Pair{}
	for i := uint64(0); indefinite || i < count; i++ {
		if indefinite {
			if len(rest) == 0 {
				return nil, io.ErrUnexpectedEOF
			}
			if rest[0] == cborBreak {
				break
			}
		}
		var p Pair
		if rest, err = cbor.UnmarshalFirst(rest, &p.K); err != nil {
			return nil, errors.Wrapf(err, "decoding key of map entry %d", i)
		}
		if rest, err = cbor.UnmarshalFirst(rest, &p.V); err != nil {
			return nil, errors.Wrapf(err, "decoding value of map entry %d", i)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// itemHeader reads the argument of a CBOR item header.
func itemHeader(data []byte) (count uint64, rest []byte, indefinite bool, err error) {
	if len(data) == 0 {
		return 0, nil, false, io.ErrUnexpectedEOF
	}
	info := data[0] & 0x1f
	switch {
	case info < 24:
		return uint64(info), data[1:], false, nil
	case info == 31:
		return 0, data[1:], true, nil
	case info > 27:
		return 0, nil, false, errors.Errorf("malformed CBOR header 0x%02x", data[0])
	}
	size := 1 << (info - 24)
	if len(data) < 1+size {
		return 0, nil, false, io.ErrUnexpectedEOF
	}
	arg := data[1 : 1+size]
	switch size {
	case 1:
		count = uint64(arg[0])
	case 2:
		count = uint64(binary.BigEndian.Uint16(arg))
	case 4:
		count = uint64(binary.BigEndian.Uint32(arg))
	case 8:
		count = binary.BigEndian.Uint64(arg)
	}
	return count, data[1+size:], false, nil
}
