package slides

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/pkg/models"
)

func writeManifest(t *testing.T, dir string, m models.SlideManifest) {
	t.Helper()
	slideDir := filepath.Join(dir, m.SlideID)
	require.NoError(t, os.MkdirAll(slideDir, 0750))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(slideDir, ManifestFile), data, 0600))
}

func validManifest(slideID string) models.SlideManifest {
	mpp := 0.25
	return models.SlideManifest{
		SlideID:      slideID,
		Level0Width:  80000,
		Level0Height: 60000,
		MPP0:         &mpp,
		PatchPx:      512,
		TileSize:     254,
		Overlap:      1,
		Anchor:       [2]int{128, 256},
		AlignmentOK:  true,
		CreatedAt:    "2026-03-10T09:00:00.000Z",
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, validManifest("slide-a"))
	writeManifest(t, dir, validManifest("slide-b"))

	reg := NewRegistry(dir)
	require.NoError(t, reg.LoadAll())
	assert.Equal(t, 2, reg.Len())

	m, err := reg.Get("slide-a")
	require.NoError(t, err)
	assert.Equal(t, int64(80000), m.Level0Width)
	assert.Equal(t, 17, m.MaxLevel())
}

func TestGetUnknownSlide(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	require.NoError(t, reg.LoadAll())

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, errs.ErrSlideNotFound)
}

func TestLoadAllSkipsInvalidManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, validManifest("slide-good"))

	// Degenerate dimensions must not load.
	bad := validManifest("slide-bad")
	bad.Level0Width = 0
	writeManifest(t, dir, bad)

	// Directory whose manifest names a different slide must not load.
	mismatched := validManifest("slide-other")
	slideDir := filepath.Join(dir, "slide-mismatch")
	require.NoError(t, os.MkdirAll(slideDir, 0750))
	data, err := json.Marshal(mismatched)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(slideDir, ManifestFile), data, 0600))

	// Directory without a manifest at all.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "slide-empty"), 0750))

	reg := NewRegistry(dir)
	require.NoError(t, reg.LoadAll())
	assert.Equal(t, 1, reg.Len())

	_, err = reg.Get("slide-good")
	assert.NoError(t, err)
}

func TestVerify_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.SlideManifest)
		wantErr bool
	}{
		{"valid", func(m *models.SlideManifest) {}, false},
		{"missing slide id", func(m *models.SlideManifest) { m.SlideID = "" }, true},
		{"zero width", func(m *models.SlideManifest) { m.Level0Width = 0 }, true},
		{"zero patch", func(m *models.SlideManifest) { m.PatchPx = 0 }, true},
		{"zero tile size", func(m *models.SlideManifest) { m.TileSize = 0 }, true},
		{"negative overlap", func(m *models.SlideManifest) { m.Overlap = -1 }, true},
		{"non-positive mpp", func(m *models.SlideManifest) { mpp := 0.0; m.MPP0 = &mpp }, true},
		{"nil mpp allowed", func(m *models.SlideManifest) { m.MPP0 = nil }, false},
		{"anchor outside patch", func(m *models.SlideManifest) { m.Anchor = [2]int{512, 0} }, true},
		{"negative anchor", func(m *models.SlideManifest) { m.Anchor = [2]int{-1, 0} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest("slide-x")
			tt.mutate(&m)
			err := verify(&m)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeUpserter struct {
	seen []string
	fail bool
}

func (f *fakeUpserter) Upsert(_ context.Context, m *models.SlideManifest) error {
	if f.fail {
		return assert.AnError
	}
	f.seen = append(f.seen, m.SlideID)
	return nil
}

func TestSyncToStore(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, validManifest("slide-a"))
	writeManifest(t, dir, validManifest("slide-b"))

	reg := NewRegistry(dir)
	require.NoError(t, reg.LoadAll())

	up := &fakeUpserter{}
	require.NoError(t, reg.SyncToStore(context.Background(), up))
	assert.ElementsMatch(t, []string{"slide-a", "slide-b"}, up.seen)

	up.fail = true
	assert.Error(t, reg.SyncToStore(context.Background(), up))
}
