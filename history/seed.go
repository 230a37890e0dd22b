// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SeedVersion of the export format.
const SeedVersion = "1.0"

// SeedData represents the JSON export file format.
type SeedData struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Lookups     []*Lookup `json:"lookups"`
}

// ExportToJSON writes every lookup, oldest first, to a JSON file.
func ExportToJSON(repo Repository, filepath string) (int, error) {
	lookups, err := repo.GetAllLookupsSorted()
	if err != nil {
		return 0, fmt.Errorf("listing lookups: %w", err)
	}

	if lookups == nil {
		lookups = []*Lookup{}
	}

	seed := &SeedData{
		Version:     SeedVersion,
		LastUpdated: time.Now().UTC(),
		Lookups:     lookups,
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return 0, fmt.Errorf("writing file: %w", err)
	}

	return len(lookups), nil
}

// ImportFromJSON appends the lookups of an export to the repository. H3 cells
// are recomputed on the way in.
func ImportFromJSON(repo Repository, filepath string) (int, error) {
	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by the user
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	if seed.Version != SeedVersion {
		return 0, fmt.Errorf("unsupported export version %q", seed.Version)
	}

	imported := 0

	for i, lookup := range seed.Lookups {
		if lookup == nil {
			return imported, fmt.Errorf("lookup %d is null", i)
		}

		if err := repo.SaveLookup(lookup); err != nil {
			return imported, fmt.Errorf("saving lookup %d (%s): %w", i, lookup.Reference, err)
		}

		imported++
	}

	return imported, nil
}
