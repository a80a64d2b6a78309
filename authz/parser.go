// Package authz parses the client's `Authorization: OpenKitx403 ...` header
// (spec.md §4.4) into a core.Authorization.
package authz

import (
	"fmt"
	"strings"

	"github.com/openkitx403/openkitx403/core"
)

// Scheme is the required, case-sensitive prefix of a conformant header.
const Scheme = "OpenKitx403 "

var requiredKeys = []string{"addr", "sig", "challenge", "ts", "nonce"}

// Parse parses raw (the full Authorization header value) into a
// core.Authorization. It enforces spec.md §4.4: the header must start with
// Scheme, parameters are comma-separated key="value" pairs with no
// embedded quotes or backslashes in this protocol version, all of
// requiredKeys must be present (duplicates take the last value, unknown
// keys are ignored), and "bind" is optional.
func Parse(raw string) (core.Authorization, error) {
	if !strings.HasPrefix(raw, Scheme) {
		return core.Authorization{}, fmt.Errorf("authz: missing %q scheme prefix", strings.TrimSpace(Scheme))
	}
	params, err := parseParams(raw[len(Scheme):])
	if err != nil {
		return core.Authorization{}, err
	}
	for _, k := range requiredKeys {
		if _, ok := params[k]; !ok {
			return core.Authorization{}, fmt.Errorf("authz: missing required parameter %q", k)
		}
	}
	return core.Authorization{
		Addr:      params["addr"],
		Sig:       params["sig"],
		Challenge: params["challenge"],
		Ts:        params["ts"],
		Nonce:     params["nonce"],
		Bind:      params["bind"],
	}, nil
}

// parseParams splits "k1=\"v1\", k2=\"v2\"" into a map, last-value-wins on
// duplicate keys.
func parseParams(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range splitTopLevel(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, fmt.Errorf("authz: malformed parameter %q", part)
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		if len(val) < 2 || val[0] != '"' || val[len(val)-1] != '"' {
			return nil, fmt.Errorf("authz: parameter %q is not a quoted string", key)
		}
		val = val[1 : len(val)-1]
		if strings.ContainsAny(val, `"\`) {
			return nil, fmt.Errorf("authz: parameter %q contains an unsupported embedded quote or backslash", key)
		}
		if key == "" {
			return nil, fmt.Errorf("authz: empty parameter key")
		}
		out[key] = val
	}
	return out, nil
}

// splitTopLevel splits s on sep, ignoring sep occurrences inside
// double-quoted spans (values never contain quotes themselves per spec.md
// §4.4, but commas could otherwise be misread if a future value needed one
// — this keeps the parser correct even though today's grammar disallows
// that case outright).
func splitTopLevel(s string, sep byte) []string {
	var out []string
	start := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
