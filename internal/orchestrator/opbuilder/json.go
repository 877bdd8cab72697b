package opbuilder

import "encoding/json"

// mustJSON encodes the operation payload map; encoding a plain
// map[string]any of scalar/[]byte values never fails.
func mustJSON(v map[string]any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
