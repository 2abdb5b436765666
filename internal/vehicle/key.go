package vehicle

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrNotFound is returned when no vehicle matches a key or id.
	ErrNotFound = errors.New("vehicle not found")

	// ErrInvalidKey is returned for a VIN, VRM or query of the wrong shape.
	ErrInvalidKey = errors.New("invalid vehicle key")
)

// KeyType names the natural key used for a lookup.
type KeyType string

const (
	KeyVIN KeyType = "vin"
	KeyVRM KeyType = "vrm"
)

const (
	vinLength = 17
	vrmMinLen = 2
	vrmMaxLen = 15
)

func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(strings.ToLower(strings.TrimSpace(s))) {
	case KeyVIN:
		return KeyVIN, nil
	case KeyVRM:
		return KeyVRM, nil
	default:
		return "", fmt.Errorf("%w: key type must be vin or vrm, got %q", ErrInvalidKey, s)
	}
}

// NormalizeVIN trims and uppercases raw and requires exactly 17 characters.
func NormalizeVIN(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if utf8.RuneCountInString(vin) != vinLength {
		return "", fmt.Errorf("%w: VIN must be exactly %d characters", ErrInvalidKey, vinLength)
	}
	return vin, nil
}

// NormalizeVRM removes all whitespace, uppercases, and requires 2-15 characters.
func NormalizeVRM(raw string) (string, error) {
	vrm := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
	if n := utf8.RuneCountInString(vrm); n < vrmMinLen || n > vrmMaxLen {
		return "", fmt.Errorf("%w: VRM must be between %d and %d characters", ErrInvalidKey, vrmMinLen, vrmMaxLen)
	}
	return vrm, nil
}

// Normalize dispatches on kt.
func Normalize(raw string, kt KeyType) (string, error) {
	switch kt {
	case KeyVIN:
		return NormalizeVIN(raw)
	case KeyVRM:
		return NormalizeVRM(raw)
	default:
		return "", fmt.Errorf("%w: unknown key type %q", ErrInvalidKey, kt)
	}
}
