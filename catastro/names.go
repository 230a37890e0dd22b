// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parcela-es/parcela/utils/textutils"
)

// MatchName resolves user input against the province or municipality names
// returned by the service. The comparison ignores case, accents and repeated
// spaces. An exact match wins; otherwise the query must be the prefix of
// exactly one name.
func MatchName(names []string, q string) (string, error) {
	key := textutils.CollapseSpaces(q)
	if key == "" {
		return "", errors.New("empty search query")
	}

	var prefixed []string

	for _, name := range names {
		folded := textutils.CollapseSpaces(name)
		if folded == key {
			return name, nil
		}

		if strings.HasPrefix(folded, key) {
			prefixed = append(prefixed, name)
		}
	}

	switch len(prefixed) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrNameNotFound, q)
	case 1:
		return prefixed[0], nil
	default:
		return "", fmt.Errorf("%w for %q: %q, %q", ErrMultipleMatches, q, prefixed[0], prefixed[1])
	}
}
