package vars

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/restyrun/resty/internal/rerr"
)

// ResolveBody implements spec.md §4.2's structured-body serialisation rules.
// contentType is the already-resolved effective Content-Type (empty string
// means "absent"). body is the raw Test.Body value: either a string (sent
// as-is after a plain Resolve) or a structured map/slice (deep-resolved then
// serialised according to contentType).
func (s *Store) ResolveBody(contentType string, body interface{}) (string, error) {
	if body == nil {
		return "", nil
	}
	if str, ok := body.(string); ok {
		return s.Resolve(str)
	}

	resolved, err := s.ResolveDeep(body)
	if err != nil {
		return "", err
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "" || strings.HasPrefix(ct, "application/json"):
		b, err := json.Marshal(resolved)
		if err != nil {
			return "", fmt.Errorf("failed to serialise structured body as JSON: %w", err)
		}
		return string(b), nil
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		m, ok := resolved.(map[string]interface{})
		if !ok {
			return "", rerr.New(rerr.KindUnsupportedBody,
				"x-www-form-urlencoded body must be a mapping")
		}
		return encodeForm(m), nil
	default:
		return "", rerr.New(rerr.KindUnsupportedBody,
			fmt.Sprintf("structured body is not supported for content type %q", contentType))
	}
}

// encodeForm renders a map as key=value&... with percent-encoding on both
// sides, in sorted key order for deterministic output.
func encodeForm(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := scalarToString(m[k])
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	return strings.Join(parts, "&")
}

func scalarToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
