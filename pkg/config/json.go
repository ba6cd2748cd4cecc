// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "encoding/json"

// marshalJSONSorted renders settings as indented JSON for export.
// encoding/json's map key
// ordering is already alphabetical, giving deterministic output without
// extra sorting.
func marshalJSONSorted(m map[string]any) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalJSON(data []byte, out *map[string]any) error {
	return json.Unmarshal(data, out)
}
