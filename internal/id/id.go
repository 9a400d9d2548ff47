// Package id generates prefixed unique identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used for catalog entities. An ID looks like
// "md-V1StGXR8_Z5jdHi6B-myT": NanoIDs are URL-safe and shorter than UUIDs.
const (
	PrefixLibrary   = "lib"
	PrefixMediaItem = "md"
	PrefixStream    = "st"
	PrefixImage     = "img"
	PrefixJob       = "tj"
)

// Generate creates a prefixed NanoID. It fails only when the system cannot
// supply secure random bytes.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is Generate but panics on failure. Use during initialization
// or where entropy exhaustion should crash the process.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
