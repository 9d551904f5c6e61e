package availability

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/yumyai/structable/pkg/api"
)

// Source is the slice of the backend this index needs.
type Source interface {
	Availability(ctx context.Context) (*api.AvailabilityResponse, error)
}

// Index is a lazily loaded membership cache over structure identifiers and
// composite motif keys. The first caller triggers exactly one fetch; all
// concurrent and later callers share its outcome. A failed fetch leaves the
// index unloaded so the next call retries from scratch.
type Index struct {
	source Source
	group  singleflight.Group

	mu         sync.RWMutex
	loaded     bool
	structures map[string]struct{}
	motifs     map[string]struct{}
}

func NewIndex(source Source) *Index {
	return &Index{source: source}
}

// NormalizeID trims and lower-cases an identifier. Applied both at load and
// at query time so lookups are symmetric.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// MotifKey joins the five filter fields into the composite membership key.
// Any empty field after normalization makes the key invalid.
func MotifKey(species, tcrChain, mhcClass, gene, epitope string) (string, bool) {
	parts := []string{species, tcrChain, mhcClass, gene, epitope}
	for i, part := range parts {
		parts[i] = NormalizeID(part)
		if parts[i] == "" {
			return "", false
		}
	}
	return strings.Join(parts, "|"), true
}

// HasStructure reports whether the given structure identifier is known.
func (ix *Index) HasStructure(ctx context.Context, structureID string) (bool, error) {
	normalized := NormalizeID(structureID)
	if normalized == "" {
		return false, nil
	}
	if err := ix.ensureLoaded(ctx); err != nil {
		return false, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.structures[normalized]
	return ok, nil
}

// HasMotif reports whether a motif exists for the composite key. A tuple
// with any empty field is defined to be unavailable without consulting the
// set.
func (ix *Index) HasMotif(ctx context.Context, species, tcrChain, mhcClass, gene, epitope string) (bool, error) {
	key, ok := MotifKey(species, tcrChain, mhcClass, gene, epitope)
	if !ok {
		return false, nil
	}
	if err := ix.ensureLoaded(ctx); err != nil {
		return false, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, present := ix.motifs[key]
	return present, nil
}

func (ix *Index) ensureLoaded(ctx context.Context) error {
	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := ix.group.Do("load", func() (interface{}, error) {
		resp, err := ix.source.Availability(ctx)
		if err != nil {
			ix.mu.Lock()
			ix.structures = nil
			ix.motifs = nil
			ix.loaded = false
			ix.mu.Unlock()
			return nil, err
		}

		structures := make(map[string]struct{}, len(resp.Structures))
		for _, id := range resp.Structures {
			if normalized := NormalizeID(id); normalized != "" {
				structures[normalized] = struct{}{}
			}
		}
		motifs := make(map[string]struct{}, len(resp.Motifs))
		for _, key := range resp.Motifs {
			if normalized := NormalizeID(key); normalized != "" {
				motifs[normalized] = struct{}{}
			}
		}

		ix.mu.Lock()
		ix.structures = structures
		ix.motifs = motifs
		ix.loaded = true
		ix.mu.Unlock()
		return nil, nil
	})
	return err
}
