package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is a JSON array column (keywords, types, finishes, ...).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner. NULL and empty text scan to an empty list;
// anything that is not a JSON array of strings is rejected.
func (l *StringList) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: invalid JSON array: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Contains reports whether the list holds s (case-insensitive).
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Legality values as published by the catalog source.
const (
	LegalityLegal      = "Legal"
	LegalityBanned     = "Banned"
	LegalityRestricted = "Restricted"
	LegalityNotLegal   = "Not Legal"
)

// Legalities maps a format key (e.g. "modern") to its legality status.
// An absent key means the card is not legal in that format.
type Legalities map[string]string

// Value implements driver.Valuer.
func (l Legalities) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal legalities: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner. Values must be strings or null; a null value
// is stored as an empty status, which is treated like an absent key.
func (l *Legalities) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil {
		return fmt.Errorf("scan legalities: %w", err)
	}
	if len(raw) == 0 {
		*l = Legalities{}
		return nil
	}
	var parsed map[string]*string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("scan legalities: invalid JSON object: %w", err)
	}
	out := make(Legalities, len(parsed))
	for format, status := range parsed {
		if status == nil {
			out[format] = ""
			continue
		}
		out[format] = *status
	}
	*l = out
	return nil
}

// Status returns the stored status for a format and whether the key exists.
// Format keys are matched case-insensitively.
func (l Legalities) Status(format string) (string, bool) {
	if status, ok := l[format]; ok {
		return status, true
	}
	for key, status := range l {
		if strings.EqualFold(key, format) {
			return status, true
		}
	}
	return "", false
}

// StringMap is a JSON object of string values (identifiers, purchase URLs).
type StringMap map[string]string

// Value implements driver.Valuer.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("marshal string map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *StringMap) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil {
		return fmt.Errorf("scan string map: %w", err)
	}
	if len(raw) == 0 {
		*m = StringMap{}
		return nil
	}
	out := StringMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string map: invalid JSON object: %w", err)
	}
	*m = out
	return nil
}

// Leadership records which commander-style formats allow the card as leader.
type Leadership struct {
	Brawl       bool `json:"brawl"`
	Commander   bool `json:"commander"`
	Oathbreaker bool `json:"oathbreaker"`
}

// Value implements driver.Valuer.
func (l Leadership) Value() (driver.Value, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal leadership: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *Leadership) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil {
		return fmt.Errorf("scan leadership: %w", err)
	}
	if len(raw) == 0 {
		*l = Leadership{}
		return nil
	}
	var out Leadership
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan leadership: invalid JSON object: %w", err)
	}
	*l = out
	return nil
}

func columnBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return []byte(strings.TrimSpace(string(v))), nil
	case string:
		return []byte(strings.TrimSpace(v)), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}

// SplitColors turns the stored comma-joined colour string into symbols.
func SplitColors(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinColors is the inverse of SplitColors.
func JoinColors(colors []string) string {
	return strings.Join(colors, ",")
}
