package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 121([{h'696d616765': h'697066733a2f2f78'}, 1])
const constrDatum = "d87982a145696d61676548697066733a2f2f7801"

func TestParseDatum_Constructor(t *testing.T) {
	for name, datum := range map[string]string{
		"definite":   constrDatum,
		"indefinite": "d8799fa145696d61676548697066733a2f2f7801ff",
	} {
		t.Run(name, func(t *testing.T) {
			node, err := ParseDatum(datum)
			require.NoError(t, err)
			require.NotNil(t, node.Constructor)
			assert.Equal(t, uint64(0), *node.Constructor)
			require.Len(t, node.Fields, 2)

			v, err := Decode(node)
			require.NoError(t, err)
			image, ok := v.Index(0).Get("image").Text()
			require.True(t, ok)
			assert.Equal(t, "ipfs://x", image)
			n, _ := v.Index(1).Number()
			assert.Equal(t, int64(1), n.Int64())
		})
	}
}

func TestParseDatum_Alternatives(t *testing.T) {
	// 102([0, []])
	node, err := ParseDatum("d866820080")
	require.NoError(t, err)
	require.NotNil(t, node.Constructor)
	assert.Equal(t, uint64(0), *node.Constructor)
	assert.NotNil(t, node.Fields)
	assert.Len(t, node.Fields, 0)

	// 1280([]) is alternative 7
	node, err = ParseDatum("d9050080")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *node.Constructor)

	// 122([]) is alternative 1
	node, err = ParseDatum("d87a80")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), *node.Constructor)
}

func TestParseDatum_Integers(t *testing.T) {
	node, err := ParseDatum("20") // -1
	require.NoError(t, err)
	require.NotNil(t, node.Int)
	assert.Equal(t, int64(-1), node.Int.Int64())

	node, err = ParseDatum("c249010000000000000000") // 2^64
	require.NoError(t, err)
	require.NotNil(t, node.Int)
	assert.Equal(t, "18446744073709551616", node.Int.String())
}

func TestParseDatum_MapOrderIsKept(t *testing.T) {
	// {h'62': 1, h'61': 2}
	node, err := ParseDatum("a24162014161" + "02")
	require.NoError(t, err)
	require.Len(t, node.Map, 2)
	v, err := Decode(node)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, v.Keys())
}

func TestParseDatum_Errors(t *testing.T) {
	_, err := ParseDatum("not hex")
	assert.Error(t, err)

	// text strings are not Plutus data
	_, err = ParseDatum("6161")
	assert.Error(t, err)
}

func TestTaggedValue_UnmarshalJSONString(t *testing.T) {
	var raw map[string]TaggedValue
	require.NoError(t, json.Unmarshal([]byte(`{"222":"`+constrDatum+`"}`), &raw))
	require.Contains(t, raw, "222")
	assert.Len(t, raw["222"].Fields, 2)
}

func TestTaggedValue_UnmarshalJSON(t *testing.T) {
	var node TaggedValue
	require.NoError(t, json.Unmarshal([]byte(`{"list":[]}`), &node))
	assert.NotNil(t, node.List)
	assert.Nil(t, node.Fields)

	require.NoError(t, json.Unmarshal([]byte(`{"int":0}`), &node))
	require.NotNil(t, node.Int)
	assert.Equal(t, int64(0), node.Int.Int64())

	assert.Error(t, json.Unmarshal([]byte(`{"int":"twelve"}`), &node))
}
