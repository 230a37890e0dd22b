// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ReferenceLength is the number of characters of a cadastral reference.
const ReferenceLength = 14

// Reference is a 14 character cadastral reference: the concatenation of the
// service's pc1 and pc2 fields (7 characters each).
type Reference string

// ParseReference trims surrounding whitespace and checks the length. No
// other validation is performed; the service is the authority on whether the
// reference exists.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n != ReferenceLength {
		return "", fmt.Errorf("%w: %q tiene %d", ErrInvalidReference, s, n)
	}

	return Reference(s), nil
}

// JoinReference builds a reference from the two halves. It returns false when
// either half is missing.
func JoinReference(pc1, pc2 string) (Reference, bool) {
	pc1, pc2 = strings.TrimSpace(pc1), strings.TrimSpace(pc2)
	if pc1 == "" || pc2 == "" {
		return "", false
	}

	return Reference(pc1 + pc2), true
}

func (r Reference) half(i int) string {
	runes := []rune(string(r))
	if len(runes) != ReferenceLength {
		return ""
	}

	const n = ReferenceLength / 2

	return string(runes[i*n : (i+1)*n])
}

// PC1 returns the first half of the reference, or "" if it is malformed.
func (r Reference) PC1() string {
	return r.half(0)
}

// PC2 returns the second half of the reference, or "" if it is malformed.
func (r Reference) PC2() string {
	return r.half(1)
}

func (r Reference) String() string {
	return string(r)
}

// TruncateReference cuts user input to the maximum reference length, the way
// the dialog input field does.
func TruncateReference(s string) string {
	if utf8.RuneCountInString(s) <= ReferenceLength {
		return s
	}

	return string([]rune(s)[:ReferenceLength])
}
