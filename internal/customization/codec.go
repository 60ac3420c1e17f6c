package customization

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// decodeStrict decodes a JSON column into dst and refuses fields that are
// not part of the customization shape.
func decodeStrict(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("customization: unsupported column type %T", src)
	}
	// A bare empty array means no customization.
	switch trimmed := bytes.TrimSpace(raw); {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")), isEmptyArray(trimmed):
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("customization: decode: %w", err)
	}
	return nil
}

func isEmptyArray(b []byte) bool {
	return len(b) >= 2 && b[0] == '[' && b[len(b)-1] == ']' && len(bytes.TrimSpace(b[1:len(b)-1])) == 0
}

func (s *Schema) Scan(src any) error {
	*s = Schema{}
	return decodeStrict(src, s)
}

func (s Schema) Value() (driver.Value, error) {
	return marshalGroups(s)
}

func (r *Resolved) Scan(src any) error {
	*r = Resolved{}
	return decodeStrict(src, r)
}

func (r Resolved) Value() (driver.Value, error) {
	return marshalGroups(r)
}

func marshalGroups(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("customization: encode: %w", err)
	}
	return b, nil
}
