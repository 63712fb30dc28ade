package metadata

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexOf(s string) string {
	return hex.EncodeToString([]byte(s))
}

// latin1Hex encodes each character as one byte, the inverse of
// HexToString for code points below 256.
func latin1Hex(s string) string {
	var sb strings.Builder
	for _, r := range s {
		sb.WriteString(hex.EncodeToString([]byte{byte(r)}))
	}
	return sb.String()
}

func TestDecode_Scalars(t *testing.T) {
	v, err := Decode(NewInt(42))
	require.NoError(t, err)
	n, ok := v.Number()
	require.True(t, ok)
	assert.Equal(t, int64(42), n.Int64())

	// zero is still a number, not absence
	v, err = Decode(NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, Number, v.Kind())

	v, err = Decode(NewBytes(hexOf("ipfs://Qm")))
	require.NoError(t, err)
	s, ok := v.Text()
	require.True(t, ok)
	assert.Equal(t, "ipfs://Qm", s)

	v, err = Decode(NewBytes(""))
	require.NoError(t, err)
	s, ok = v.Text()
	assert.True(t, ok)
	assert.Equal(t, "", s)

	v, err = Decode(TaggedValue{})
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestDecode_VariantsKeepTheirKind(t *testing.T) {
	for _, s := range []string{"", "a", "image", "https://x.y/z.png", "\x00\xff"} {
		v, err := Decode(NewBytes(latin1Hex(s)))
		require.NoError(t, err)
		assert.Equal(t, String, v.Kind(), "bytes %q", s)
	}
	for _, n := range []int64{-1, 0, 1, 1 << 40} {
		v, err := Decode(NewInt(n))
		require.NoError(t, err)
		assert.Equal(t, Number, v.Kind(), "int %d", n)
	}
}

func TestDecode_StructMapList(t *testing.T) {
	node := NewStruct(0,
		NewMap(
			Pair{K: NewBytes(hexOf("name")), V: NewBytes(hexOf("Token"))},
			Pair{K: NewBytes(hexOf("image")), V: NewList(NewBytes(hexOf("ipfs://")), NewBytes(hexOf("abc")))},
		),
		NewInt(1),
	)
	v, err := Decode(node)
	require.NoError(t, err)
	require.Equal(t, Seq, v.Kind())
	assert.Equal(t, 2, v.Len())

	m := v.Index(0)
	assert.Equal(t, []string{"name", "image"}, m.Keys())
	name, _ := m.Get("name").Text()
	assert.Equal(t, "Token", name)
	chunks, ok := m.Get("image").Items()
	require.True(t, ok)
	require.Len(t, chunks, 2)

	version, _ := v.Index(1).Number()
	assert.Equal(t, int64(1), version.Int64())
	assert.True(t, v.Index(2).IsAbsent())
	assert.True(t, m.Get("missing").IsAbsent())
}

func TestDecode_DuplicateKeysOverwrite(t *testing.T) {
	v, err := Decode(NewMap(
		Pair{K: NewBytes(hexOf("a")), V: NewInt(1)},
		Pair{K: NewBytes(hexOf("b")), V: NewInt(2)},
		Pair{K: NewBytes(hexOf("a")), V: NewInt(3)},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	n, _ := v.Get("a").Number()
	assert.Equal(t, int64(3), n.Int64())
}

func TestDecode_FieldsWinOverOtherPayloads(t *testing.T) {
	hexImage := hexOf("image")
	node := TaggedValue{
		Fields: []TaggedValue{NewInt(7)},
		Map:    []Pair{{K: NewBytes(hexImage), V: NewInt(1)}},
		Int:    big.NewInt(9),
		Bytes:  &hexImage,
		List:   []TaggedValue{NewInt(8)},
	}
	v, err := Decode(node)
	require.NoError(t, err)
	require.Equal(t, Seq, v.Kind())
	n, _ := v.Index(0).Number()
	assert.Equal(t, int64(7), n.Int64())

	node.Fields = nil
	v, _ = Decode(node)
	assert.Equal(t, Map, v.Kind())

	node.Map = nil
	v, _ = Decode(node)
	assert.Equal(t, Number, v.Kind())

	node.Int = nil
	v, _ = Decode(node)
	assert.Equal(t, String, v.Kind())

	node.Bytes = nil
	v, _ = Decode(node)
	assert.Equal(t, Seq, v.Kind())
}

func TestDecode_EmptyFieldsArePresent(t *testing.T) {
	v, err := Decode(NewStruct(0))
	require.NoError(t, err)
	assert.Equal(t, Seq, v.Kind())
	assert.Equal(t, 0, v.Len())
}

func TestDecode_MapKeyWithoutBytes(t *testing.T) {
	_, err := Decode(NewMap(Pair{K: NewInt(1), V: NewInt(2)}))
	assert.Error(t, err)
}

func TestHexToString(t *testing.T) {
	assert.Equal(t, "image", HexToString("696d616765"))
	assert.Equal(t, "IMAGE", HexToString("494D414745"))
	assert.Equal(t, "", HexToString(""))
	// byte to character, not UTF-8: e2 9c 93 is three characters
	assert.Equal(t, "â\u009c\u0093", HexToString("e29c93"))
	// unparsable pair
	assert.Equal(t, "a\x00b", HexToString("61zz62"))
	// trailing odd digit
	assert.Equal(t, "a\x0f", HexToString("61f"))
}

func TestHexToString_LeftInverse(t *testing.T) {
	for _, s := range []string{"", "x", "hello world", "ipfs://QmXyZ/1.png", "café", "\x00\x7fÿ"} {
		assert.Equal(t, s, HexToString(latin1Hex(s)))
	}
}

const koiosCIP68 = `{
  "222": {
    "constructor": 0,
    "fields": [
      {"map": [
        {"k": {"bytes": "6e616d65"}, "v": {"bytes": "4e4654"}},
        {"k": {"bytes": "696d616765"}, "v": {"bytes": "697066733a2f2f516d416263"}}
      ]},
      {"int": 1},
      {"constructor": 0, "fields": []}
    ]
  },
  "100": {
    "constructor": 0,
    "fields": [
      {"map": [{"k": {"bytes": "696d616765"}, "v": {"bytes": "68747470733a2f2f782e696f2f612e706e67"}}]},
      {"int": "340282366920938463463374607431768211456"}
    ]
  }
}`

func TestDecodeTopLevel(t *testing.T) {
	var raw map[string]TaggedValue
	require.NoError(t, json.Unmarshal([]byte(koiosCIP68), &raw))

	v := DecodeTopLevel(raw, log.NewNopLogger())
	assert.Equal(t, []string{"100", "222"}, v.Keys())

	image, ok := v.Get("222").Index(0).Get("image").Text()
	require.True(t, ok)
	assert.Equal(t, "ipfs://QmAbc", image)

	image, _ = v.Get("100").Index(0).Get("image").Text()
	assert.Equal(t, "https://x.io/a.png", image)

	supply, ok := v.Get("100").Index(1).Number()
	require.True(t, ok)
	assert.Equal(t, "340282366920938463463374607431768211456", supply.String())
}

func TestDecodeTopLevel_FailureEmptiesEverything(t *testing.T) {
	raw := map[string]TaggedValue{
		"222": NewStruct(0, NewMap(Pair{K: NewBytes(hexOf("image")), V: NewBytes(hexOf("ipfs://x"))})),
		"333": NewMap(Pair{K: NewInt(1), V: NewInt(2)}),
	}
	v := DecodeTopLevel(raw, log.NewNopLogger())
	assert.Equal(t, Map, v.Kind())
	assert.Equal(t, 0, v.Len())
}

func TestDecodeTopLevel_Nil(t *testing.T) {
	v := DecodeTopLevel(nil, log.NewNopLogger())
	assert.Equal(t, Map, v.Kind())
	assert.True(t, v.Get("222").IsAbsent())
}

func TestValue_MarshalJSON(t *testing.T) {
	v, err := Decode(NewStruct(0,
		NewMap(
			Pair{K: NewBytes(hexOf("z")), V: NewBytes(hexOf("last"))},
			Pair{K: NewBytes(hexOf("a")), V: NewInt(2)},
		),
		TaggedValue{},
	))
	require.NoError(t, err)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `[{"z":"last","a":2},null]`, string(out))
}

func TestFromJSON(t *testing.T) {
	var data interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"b":[1,"x",null],"a":{"image":"ipfs://q"},"c":true,"d":1.5}`), &data))
	v := FromJSON(data)
	assert.Equal(t, []string{"a", "b", "c", "d"}, v.Keys())
	img, _ := v.Get("a").Get("image").Text()
	assert.Equal(t, "ipfs://q", img)
	assert.Equal(t, Number, v.Get("b").Index(0).Kind())
	assert.True(t, v.Get("b").Index(2).IsAbsent())
	c, _ := v.Get("c").Text()
	assert.Equal(t, "true", c)
	d, _ := v.Get("d").Number()
	assert.Equal(t, int64(1), d.Int64())
}
