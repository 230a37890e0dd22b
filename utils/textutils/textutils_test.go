// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package textutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerASCIIFolding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"MADRID", "madrid"},
		{"  MÁLAGA  ", "malaga"},
		{"A CORUÑA", "a coruna"},
		{"ÁVILA", "avila"},
		{"Lleida/Lérida", "lleida/lerida"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, LowerASCIIFolding(tc.input))
		})
	}
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "santa cruz de tenerife", CollapseSpaces(" SANTA  CRUZ DE\tTENERIFE "))
	assert.Equal(t, "", CollapseSpaces("   "))
}
