// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes the Spanish place names returned by the
// cadastre so they can be compared with user input.
package textutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding removes accents, lowercases and trims spaces.
// "A CORUÑA" becomes "a coruna".
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// CollapseSpaces folds and also squeezes inner whitespace runs, so that
// "SANTA  CRUZ DE\tTENERIFE" matches "santa cruz de tenerife".
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(LowerASCIIFolding(s)), " ")
}
