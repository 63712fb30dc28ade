package metadata

import (
	"encoding/json"
	"math/big"
	"sort"
	"strconv"
)

// FromJSON converts a generic JSON tree, as produced by encoding/json
// into interface{}, into a Value. Object keys are ordered
// lexically. JSON null converts to Absent; booleans become their
// string form; non-integral numbers are truncated.
func FromJSON(data interface{}) Value {
	switch d := data.(type) {
	case nil:
		return Value{}
	case string:
		return StringValue(d)
	case bool:
		return StringValue(strconv.FormatBool(d))
	case json.Number:
		return numberFromLiteral(d.String())
	case float64:
		return numberFromLiteral(strconv.FormatFloat(d, 'f', -1, 64))
	case []interface{}:
		items := make([]Value, len(d))
		for i := range d {
			items[i] = FromJSON(d[i])
		}
		return SeqValue(items...)
	case map[string]interface{}:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			entries[i] = Entry{Key: k, Value: FromJSON(d[k])}
		}
		return Object(entries...)
	}
	return Value{}
}

func numberFromLiteral(literal string) Value {
	if n, ok := new(big.Int).SetString(literal, 10); ok {
		return NumberValue(n)
	}
	f, _, err := big.ParseFloat(literal, 10, 256, big.ToZero)
	if err != nil {
		return Value{}
	}
	n, _ := f.Int(nil)
	return NumberValue(n)
}
