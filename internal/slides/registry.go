// Package slides maintains the manifest registry: per-slide pyramid geometry
// loaded from disk, verified, mirrored into the database, and kept fresh via
// filesystem watching.
package slides

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/pkg/models"
)

// ManifestFile is the per-slide manifest file name under the slides
// directory: <dir>/<slide_id>/manifest.json.
const ManifestFile = "manifest.json"

// Registry holds the in-memory manifest set, keyed by slide ID.
type Registry struct {
	dir    string
	mu     sync.RWMutex
	slides map[string]*models.SlideManifest
}

// NewRegistry creates an empty registry over the given slides directory.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		slides: make(map[string]*models.SlideManifest),
	}
}

// LoadAll scans the slides directory and (re)loads every manifest found.
// Slides with unreadable or invalid manifests are skipped with a warning, so
// one bad export never takes down the rest of the library.
func (r *Registry) LoadAll() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read slides dir %s: %w", r.dir, err)
	}

	loaded := make(map[string]*models.SlideManifest)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name(), ManifestFile)
		m, err := loadManifest(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", path).Msg("Skipping invalid slide manifest")
			}
			continue
		}
		if m.SlideID != entry.Name() {
			log.Warn().
				Str("dir", entry.Name()).
				Str("slideId", m.SlideID).
				Msg("Manifest slide_id does not match its directory, skipping")
			continue
		}
		loaded[m.SlideID] = m
	}

	r.mu.Lock()
	r.slides = loaded
	count := len(loaded)
	r.mu.Unlock()

	log.Debug().Int("slides", count).Str("dir", r.dir).Msg("Slide registry loaded")
	return nil
}

// loadManifest reads and verifies one manifest file.
func loadManifest(path string) (*models.SlideManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m models.SlideManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := verify(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// verify checks the manifest invariants needed by coordinate mapping: real
// dimensions, a positive patch size, and a tile geometry that can cover the
// level-0 plane.
func verify(m *models.SlideManifest) error {
	if m.SlideID == "" {
		return fmt.Errorf("manifest missing slide_id")
	}
	if m.Level0Width <= 0 || m.Level0Height <= 0 {
		return fmt.Errorf("slide %s: non-positive level-0 dimensions %dx%d",
			m.SlideID, m.Level0Width, m.Level0Height)
	}
	if m.PatchPx <= 0 {
		return fmt.Errorf("slide %s: non-positive patch size %d", m.SlideID, m.PatchPx)
	}
	if m.TileSize <= 0 {
		return fmt.Errorf("slide %s: non-positive tile size %d", m.SlideID, m.TileSize)
	}
	if m.Overlap < 0 {
		return fmt.Errorf("slide %s: negative tile overlap %d", m.SlideID, m.Overlap)
	}
	if m.MPP0 != nil && *m.MPP0 <= 0 {
		return fmt.Errorf("slide %s: non-positive mpp0 %v", m.SlideID, *m.MPP0)
	}
	if m.Anchor[0] < 0 || m.Anchor[1] < 0 ||
		m.Anchor[0] >= m.PatchPx || m.Anchor[1] >= m.PatchPx {
		return fmt.Errorf("slide %s: lattice anchor (%d,%d) outside patch window",
			m.SlideID, m.Anchor[0], m.Anchor[1])
	}
	return nil
}

// Get retrieves a manifest by slide ID.
func (r *Registry) Get(slideID string) (*models.SlideManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.slides[slideID]
	if !ok {
		return nil, errs.ErrSlideNotFound
	}
	return m, nil
}

// List returns all loaded manifests.
func (r *Registry) List() []*models.SlideManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.SlideManifest, 0, len(r.slides))
	for _, m := range r.slides {
		out = append(out, m)
	}
	return out
}

// Len returns the number of loaded manifests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slides)
}

// Upserter mirrors manifests into durable storage.
type Upserter interface {
	Upsert(ctx context.Context, m *models.SlideManifest) error
}

// SyncToStore writes every loaded manifest into the store so replay can run
// from a DSN alone, without the tile directory mounted.
func (r *Registry) SyncToStore(ctx context.Context, store Upserter) error {
	for _, m := range r.List() {
		if err := store.Upsert(ctx, m); err != nil {
			return fmt.Errorf("sync slide %s: %w", m.SlideID, err)
		}
	}
	return nil
}
