package pipeline

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// decodeDataURI returns the bytes of a data: URI. Base64 payloads may
// be padded or not; anything else is percent-encoded text, which is how
// SVGs are usually put on chain.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if !strings.HasPrefix(uri, "data:") || comma < 0 {
		return nil, errors.New("malformed data URI")
	}
	params, payload := uri[len("data:"):comma], uri[comma+1:]
	if strings.HasSuffix(params, ";base64") {
		return decodeBase64(payload)
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decoding data URI payload")
	}
	return []byte(data), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if data, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return data, nil
	}
	return nil, errors.Wrap(err, "decoding base64")
}
