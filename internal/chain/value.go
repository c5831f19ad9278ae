package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/bytedance/sonic"
)

// StateValue is the raw JSON value of a storage query. Subtensor encodes
// integers either as numbers or as hex/decimal strings depending on width.
type StateValue []byte

// IsNull reports whether the storage entry was empty.
func (v StateValue) IsNull() bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null"
}

// Int decodes the value as an integer.
func (v StateValue) Int() (int, error) {
	var h HexOrInt
	if err := h.UnmarshalJSON(v); err != nil {
		return 0, err
	}
	if !h.Value.IsInt64() {
		return 0, fmt.Errorf("value %s overflows int64", h.Value.String())
	}
	return int(h.Value.Int64()), nil
}

// String decodes the value as a string, typically an SS58 address.
func (v StateValue) String() (string, error) {
	if v.IsNull() {
		return "", nil
	}
	var s string
	if err := sonic.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("value is not a string: %w", err)
	}
	return s, nil
}

// Bools decodes the value as a bool vector, e.g. the validator permit bitmap.
func (v StateValue) Bools() ([]bool, error) {
	if v.IsNull() {
		return nil, nil
	}
	var out []bool
	if err := sonic.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("value is not a bool list: %w", err)
	}
	return out, nil
}

// HexOrInt handles fields that can be either a number or a hex string.
type HexOrInt struct {
	Value *big.Int
}

// UnmarshalJSON accepts numbers (12345) or strings ("0xabc" or "12345").
func (h *HexOrInt) UnmarshalJSON(data []byte) error {
	h.Value = new(big.Int)

	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := sonic.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("value must be a number or string, got: %s", s)
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, ok := h.Value.SetString(s[2:], 16); !ok {
			return fmt.Errorf("invalid hex string: %s", s)
		}
		return nil
	}

	if _, ok := h.Value.SetString(s, 10); !ok {
		return fmt.Errorf("invalid number string: %s", s)
	}
	return nil
}

// UnmarshalJSON keeps the raw bytes so decoding can be deferred to the caller.
func (v *StateValue) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

// MarshalJSON writes the raw bytes back out.
func (v StateValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}
