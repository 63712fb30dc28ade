package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks a content type based on the Accept
// header from a request, and a supplied list of available content
// types in order of preference. Wildcards ("*/*", "text/*") match any
// available type they cover. If several available types match, the
// one with the highest quality (`q`) parameter wins; ties go to the
// one that appears first in the available types. No Accept header
// means the first preference; no match at all means "".
func negotiateContentType(r *http.Request, orderedPref []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return orderedPref[0]
	}

	type candidate struct {
		value string
		q     float64
		// exact matches beat wildcards of the same quality
		exact bool
	}
	var matches []candidate
	for _, pref := range orderedPref {
		best := candidate{value: pref, q: -1}
		for _, spec := range specs {
			if !covers(spec.Value, pref) || spec.Q <= 0 {
				continue
			}
			exact := spec.Value == pref
			if spec.Q > best.q || (spec.Q == best.q && exact) {
				best = candidate{value: pref, q: spec.Q, exact: exact}
			}
		}
		if best.q > 0 {
			matches = append(matches, best)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].q != matches[j].q {
			return matches[i].q > matches[j].q
		}
		return matches[i].exact && !matches[j].exact
	})
	return matches[0].value
}

// covers reports whether the media range in an Accept header admits
// contentType.
func covers(mediaRange, contentType string) bool {
	switch {
	case mediaRange == "*/*":
		return true
	case strings.HasSuffix(mediaRange, "/*"):
		return strings.HasPrefix(contentType, strings.TrimSuffix(mediaRange, "*"))
	}
	return mediaRange == contentType
}
