package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// ToJSONB marshals a value to JSONB-compatible bytes. Nil slices and maps
// marshal to their empty literal so columns stay non-null.
func ToJSONB(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling to jsonb: %w", err)
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

// FromJSONB unmarshals JSONB bytes into dst; nil source leaves dst zero.
func FromJSONB(src []byte, dst any) error {
	if len(src) == 0 {
		return nil
	}
	if err := json.Unmarshal(src, dst); err != nil {
		return fmt.Errorf("unmarshaling from jsonb: %w", err)
	}
	return nil
}

func idsToJSONB(ids []core.ID) ([]byte, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return ToJSONB(raw)
}

func idsFromJSONB(src []byte) ([]core.ID, error) {
	var raw []string
	if err := FromJSONB(src, &raw); err != nil {
		return nil, err
	}
	ids := make([]core.ID, len(raw))
	for i, s := range raw {
		ids[i] = core.ID(s)
	}
	return ids, nil
}
