package eos

import (
	"fmt"
	"strings"
)

const nameCharset = ".12345abcdefghijklmnopqrstuvwxyz"

// NameToUint64 packs an account or action name into its base32 integer form:
// twelve 5-bit characters from the high bits down, then a 4-bit 13th character.
func NameToUint64(s string) (uint64, error) {
	if len(s) > 13 {
		return 0, fmt.Errorf("name %q longer than 13 characters", s)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := strings.IndexByte(nameCharset, s[i])
		if c < 0 {
			return 0, fmt.Errorf("name %q has invalid character %q", s, s[i])
		}
		if i < 12 {
			v |= uint64(c&0x1f) << (64 - 5*(i+1))
			continue
		}
		if c > 0x0f {
			return 0, fmt.Errorf("name %q has invalid 13th character %q", s, s[i])
		}
		v |= uint64(c)
	}
	return v, nil
}

// NameFromUint64 is the inverse of NameToUint64, without trailing dots.
func NameFromUint64(v uint64) string {
	out := make([]byte, 13)
	tmp := v
	for i := 0; i <= 12; i++ {
		var c uint64
		if i == 0 {
			c = tmp & 0x0f
			tmp >>= 4
		} else {
			c = tmp & 0x1f
			tmp >>= 5
		}
		out[12-i] = nameCharset[c]
	}
	return strings.TrimRight(string(out), ".")
}

// ValidateAccountName accepts the names a user account can have: one to
// twelve characters from a-z, 1-5 and '.', not ending with a dot.
func ValidateAccountName(s string) bool {
	if len(s) == 0 || len(s) > 12 || s[len(s)-1] == '.' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(nameCharset, s[i]) < 0 {
			return false
		}
	}
	return true
}
