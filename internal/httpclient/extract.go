package httpclient

import (
	"encoding/json"
	"strings"
)

// Sentinels returned by extractPath when a dot-separated path cannot be
// resolved against a decoded JSON response body. A body that fails to
// parse as a JSON object at all is a transport failure (see dispatch),
// not an extraction concern -- extractPath only ever sees an already
// decoded object.
const (
	extractNotApplicable = "N/A"
	extractError         = "EXTRACTION_ERROR"
)

// extractPath walks path (dot-separated keys) through obj, a decoded
// JSON object. A missing key or a non-object intermediate yields "N/A";
// a leaf value extractPath cannot render as a string yields
// "EXTRACTION_ERROR". No dedicated JSON-path library is used here: the
// corpus carries no gjson/jsonpath-style dependency, and the traversal
// this specification requires is a plain dot-path walk over
// map[string]any, which the standard library expresses directly.
func extractPath(obj map[string]any, path string) string {
	keys := strings.Split(path, ".")
	var cur any = obj
	for i, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return extractNotApplicable
		}
		v, ok := m[key]
		if !ok {
			return extractNotApplicable
		}
		if i == len(keys)-1 {
			return stringifyLeaf(v)
		}
		cur = v
	}
	return extractNotApplicable
}

// stringifyLeaf renders a resolved JSON leaf value as the status/message
// string the broadcast path compares and logs. Objects/arrays at the leaf
// position are not a supported shape for status/message fields and are
// reported as not applicable.
func stringifyLeaf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return extractNotApplicable
	case map[string]any, []any:
		return extractNotApplicable
	default:
		// numbers, booleans
		b, err := json.Marshal(t)
		if err != nil {
			return extractError
		}
		return string(b)
	}
}
