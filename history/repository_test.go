// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"
)

func setupTestDB(t *testing.T) Repository {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.CreateSchema())

	count, err := repo.CountLookups()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSaveLookupGeographic(t *testing.T) {
	repo := setupTestDB(t)

	lookup := NewLookup(&catastro.Location{
		Reference: "9872023VH5797S",
		SRS:       "EPSG:4326",
		Point:     spatial.Point{X: -3.7038, Y: 40.4168},
		Address:   "CL MAYOR 1 MADRID (MADRID)",
	})
	require.NoError(t, repo.Record(lookup))
	assert.False(t, lookup.CreatedAt.IsZero())

	cell, err := h3.LatLngToCell(h3.NewLatLng(40.4168, -3.7038), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(cell), lookup.H3Res7)

	got, err := repo.ListLookups(10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	if diff := cmp.Diff(lookup, got[0]); diff != "" {
		t.Errorf("lookup mismatch (-expected +got):\n%s", diff)
	}
}

func TestSaveLookupProjectedHasNoCells(t *testing.T) {
	repo := setupTestDB(t)

	lookup := &Lookup{
		Reference: "9872023VH5797S",
		SRS:       "EPSG:25830",
		Point:     spatial.Point{X: 440123.45, Y: 4474567.89},
	}
	require.NoError(t, repo.SaveLookup(lookup))

	got, err := repo.ListLookups(0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].H3Res5)
	assert.Zero(t, got[0].H3Res9)
	assert.Empty(t, got[0].Address)
	assert.Equal(t, lookup.Point, got[0].Point)
}

func TestSaveLookupRejectsIncomplete(t *testing.T) {
	repo := setupTestDB(t)

	require.Error(t, repo.SaveLookup(nil))
	require.Error(t, repo.SaveLookup(&Lookup{SRS: "EPSG:4326"}))
}

func TestListLookupsOrderAndPaging(t *testing.T) {
	repo := setupTestDB(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, ref := range []string{"AAAAAAAAAAAAAA", "BBBBBBBBBBBBBB", "CCCCCCCCCCCCCC"} {
		require.NoError(t, repo.SaveLookup(&Lookup{
			Reference: ref,
			SRS:       "EPSG:4258",
			Point:     spatial.Point{X: -3, Y: 40},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	count, err := repo.CountLookups()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, err := repo.ListLookups(2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "CCCCCCCCCCCCCC", page[0].Reference)
	assert.Equal(t, "BBBBBBBBBBBBBB", page[1].Reference)

	page, err = repo.ListLookups(2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "AAAAAAAAAAAAAA", page[0].Reference)

	all, err := repo.GetAllLookupsSorted()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AAAAAAAAAAAAAA", all[0].Reference)
}

func TestExportImportJSON(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.SaveLookup(&Lookup{
		Reference: "9872023VH5797S",
		SRS:       "EPSG:4326",
		Point:     spatial.Point{X: -3.7038, Y: 40.4168},
		Address:   "CL MAYOR 1 MADRID (MADRID)",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.SaveLookup(&Lookup{
		Reference: "28900A00100006",
		SRS:       "EPSG:25830",
		Point:     spatial.Point{X: 440123.45, Y: 4474567.89},
		CreatedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}))

	path := filepath.Join(t.TempDir(), "historial.json")

	exported, err := ExportToJSON(repo, path)
	require.NoError(t, err)
	assert.Equal(t, 2, exported)

	_, err = os.Stat(path)
	require.NoError(t, err)

	repo2 := setupTestDB(t)

	imported, err := ImportFromJSON(repo2, path)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	want, err := repo.GetAllLookupsSorted()
	require.NoError(t, err)

	got, err := repo2.GetAllLookupsSorted()
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("imported lookups mismatch (-expected +got):\n%s", diff)
	}

	assert.NotZero(t, got[0].H3Res5, "cells are recomputed on import")
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"9","lookups":[]}`), 0o600))

	_, err := ImportFromJSON(setupTestDB(t), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export version")
}

func TestImportRejectsNullLookup(t *testing.T) {
	repo := setupTestDB(t)

	path := filepath.Join(t.TempDir(), "historial.json")
	content := `{"version":"1.0","lookups":[null]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	n, err := ImportFromJSON(repo, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup 0 is null")
	assert.Equal(t, 0, n)

	count, err := repo.CountLookups()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
