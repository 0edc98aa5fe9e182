package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestShortIDGenerator(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{name: "default length when zero", length: 0, want: DefaultShortIDLength},
		{name: "default length when negative", length: -3, want: DefaultShortIDLength},
		{name: "custom length", length: 5, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewShortIDGenerator(tt.length)
			if err != nil {
				t.Fatalf("NewShortIDGenerator() error = %v", err)
			}
			id := gen()
			if len(id) != tt.want {
				t.Fatalf("len(%q) = %d, want %d", id, len(id), tt.want)
			}
			for _, c := range id {
				if !strings.ContainsRune(ShortIDAlphabet, c) {
					t.Fatalf("character %q outside alphabet in %q", c, id)
				}
			}
		})
	}
}

func TestShortIDGeneratorMostlyUnique(t *testing.T) {
	gen, err := NewShortIDGenerator(DefaultShortIDLength)
	if err != nil {
		t.Fatalf("NewShortIDGenerator() error = %v", err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate shortcode %q after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestNewIDGenerator(t *testing.T) {
	gen, err := NewIDGenerator("uuid", 0)
	if err != nil {
		t.Fatalf("uuid strategy: %v", err)
	}
	if _, err := uuid.Parse(gen()); err != nil {
		t.Fatalf("uuid strategy produced invalid uuid: %v", err)
	}

	if _, err := NewIDGenerator("snowflake", 0); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
