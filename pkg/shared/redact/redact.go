package redact

import (
	"encoding/json"
	"strings"
)

const Mask = "***"

var sensitiveKeys = []string{"authorization", "cookie", "access_token", "id_token", "session", "apikey", "password", "passcode", "tlskeyfile", "tls_key_file"}

// JSON masks sensitive fields in a JSON document best-effort. Input that is
// not JSON is returned unchanged.
func JSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	v = node(v)
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// Value marshals v and returns its redacted generic form, ready to be
// encoded again.
func Value(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return node(out), nil
}

func node(n any) any {
	switch t := n.(type) {
	case map[string]any:
		for k, v := range t {
			if IsSensitiveKey(k) {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				t[k] = Mask
				continue
			}
			t[k] = node(v)
		}
	case []any:
		for i := range t {
			t[i] = node(t[i])
		}
	}
	return n
}

func IsSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
