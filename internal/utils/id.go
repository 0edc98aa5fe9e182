package utils

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/jaevor/go-nanoid"
)

// ShortIDAlphabet is the 36-character alphabet used for connection shortcodes.
const ShortIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultShortIDLength is used when a non-positive length is requested.
const DefaultShortIDLength = 8

// IDGenerator returns a new identifier on each call.
type IDGenerator func() string

// NewShortIDGenerator returns a generator of random lowercase alphanumeric shortcodes.
// Shortcodes are not checked for uniqueness.
func NewShortIDGenerator(length int) (IDGenerator, error) {
	if length <= 0 {
		length = DefaultShortIDLength
	}
	gen, err := gonanoid.CustomASCII(ShortIDAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("shortcode generator: %w", err)
	}
	return gen, nil
}

// NewUUID returns a random (v4) UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// NewIDGenerator picks a generator by strategy name: "shortcode" or "uuid".
func NewIDGenerator(strategy string, length int) (IDGenerator, error) {
	switch strategy {
	case "", "shortcode":
		return NewShortIDGenerator(length)
	case "uuid":
		return NewUUID, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}
