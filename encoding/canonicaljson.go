package encoding

import "encoding/json"

// CanonicalJSON marshals v with no insignificant whitespace and, for any
// map-typed value (including nested maps reachable through v, such as a
// Challenge's `ext` field), byte-lexicographically sorted keys.
//
// encoding/json already marshals map[string]any keys in sorted order and
// never emits whitespace outside of MarshalIndent, so this is a thin,
// explicitly-named wrapper rather than a hand-rolled sorter: the sorting
// guarantee is documented stdlib behavior, not an accident this package
// should re-implement.
func CanonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
