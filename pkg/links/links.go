package links

// Pure derivations of navigation and image URLs from cluster metadata.
// Missing metadata is never an error here: it simply yields an inert link
// or an empty image URL.

import (
	"context"
	"net/url"
	"strings"

	"github.com/yumyai/structable/pkg/availability"
	"github.com/yumyai/structable/pkg/model"
)

// Inert is the placeholder href rendered when no link can be derived.
const Inert = "#"

const (
	structureFilesPrefix  = "/structure-files"
	assetStructuresPrefix = "/assets/structures"
	motifPagePath         = "/motif"
	structurePagePath     = "/structure"
)

// StripAlleleSubtype cuts a trailing :subtype suffix from an MHC allele,
// e.g. "A*02:01" -> "A*02".
func StripAlleleSubtype(allele string) string {
	if i := strings.Index(allele, ":"); i != -1 {
		return allele[:i]
	}
	return allele
}

// StructureImageURL derives the image location for a row. The cell subset
// decides the directory: anything mentioning CD4 goes to cd4, everything
// else to cd8. No structure id means no image.
func StructureImageURL(meta model.ClusterMeta) string {
	id := strings.TrimSpace(meta.StructureID)
	if id == "" {
		return ""
	}
	dir := "cd8"
	if strings.Contains(strings.ToLower(meta.CellSubset), "cd4") {
		dir = "cd4"
	}
	return structureFilesPrefix + "/" + dir + "/" + id + ".png"
}

// ClusterImageURL is the legacy per-cluster image location used by rows
// that predate structure identifiers.
func ClusterImageURL(clusterID string) string {
	id := strings.TrimSpace(clusterID)
	if id == "" {
		return ""
	}
	return assetStructuresPrefix + "/" + id + ".png"
}

// AssignClusterImage fills in the image URL of a cluster once. An already
// resolved URL is never overwritten. Rows without a structure id fall back
// to the legacy per-cluster image.
func AssignClusterImage(c *model.Cluster) {
	if c.ImageURL != "" {
		return
	}
	if img := StructureImageURL(c.Meta); img != "" {
		c.ImageURL = img
		return
	}
	c.ImageURL = ClusterImageURL(c.ClusterID)
}

// MotifURL builds the motif page link for a fully qualified tuple. Any
// empty field yields the inert link. The gene is the MHC allele with its
// subtype suffix stripped.
func MotifURL(species, tcrChain, mhcClass, allele, epitope string) string {
	gene := StripAlleleSubtype(allele)
	if species == "" || tcrChain == "" || mhcClass == "" || gene == "" || epitope == "" {
		return Inert
	}
	params := url.Values{}
	params.Set("species", species)
	params.Set("tcr_chain", tcrChain)
	params.Set("mhc_class", mhcClass)
	params.Set("gene", gene)
	params.Set("epitope_seq", epitope)
	return motifPagePath + "?" + params.Encode()
}

// StructureURL builds the structure page link; it additionally carries the
// structure identifier.
func StructureURL(species, tcrChain, mhcClass, allele, epitope, structureID string) string {
	gene := StripAlleleSubtype(allele)
	if species == "" || tcrChain == "" || mhcClass == "" || gene == "" || epitope == "" || structureID == "" {
		return Inert
	}
	params := url.Values{}
	params.Set("species", species)
	params.Set("tcr_chain", tcrChain)
	params.Set("mhc_class", mhcClass)
	params.Set("gene", gene)
	params.Set("epitope_seq", epitope)
	params.Set("structure_id", structureID)
	return structurePagePath + "?" + params.Encode()
}

// Resolver gates derived links on the availability index: a link becomes
// active only once the index confirms membership, and collapses to inert on
// any lookup failure.
type Resolver struct {
	index *availability.Index
}

func NewResolver(index *availability.Index) *Resolver {
	return &Resolver{index: index}
}

// ResolveMotifLink returns the active motif link for a row, or Inert.
func (r *Resolver) ResolveMotifLink(ctx context.Context, meta model.ClusterMeta, epitope string) string {
	gene := StripAlleleSubtype(meta.MHCA)
	available, err := r.index.HasMotif(ctx, meta.Species, meta.Gene, meta.MHCClass, gene, epitope)
	if err != nil || !available {
		return Inert
	}
	return MotifURL(meta.Species, meta.Gene, meta.MHCClass, meta.MHCA, epitope)
}

// ResolveStructureLink returns the active structure page link for a row, or
// Inert when the structure is unknown to the index.
func (r *Resolver) ResolveStructureLink(ctx context.Context, meta model.ClusterMeta, epitope string) string {
	available, err := r.index.HasStructure(ctx, meta.StructureID)
	if err != nil || !available {
		return Inert
	}
	return StructureURL(meta.Species, meta.Gene, meta.MHCClass, meta.MHCA, epitope, meta.StructureID)
}

// ResolveStructureImage returns the image URL for a row once the index
// confirms the structure exists, otherwise "".
func (r *Resolver) ResolveStructureImage(ctx context.Context, meta model.ClusterMeta) string {
	available, err := r.index.HasStructure(ctx, meta.StructureID)
	if err != nil || !available {
		return ""
	}
	return StructureImageURL(meta)
}
