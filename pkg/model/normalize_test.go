package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaFromRaw_KeySpellings(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]string
	}{
		{"dotted", map[string]string{"mhc.class": "MHCI", "structure.id": "S1", "cell.subset": "CD4+ T"}},
		{"flat", map[string]string{"mhcclass": "MHCI", "structureid": "S1", "cellsubset": "CD4+ T"}},
		{"camel", map[string]string{"mhcClass": "MHCI", "structureId": "S1", "cellSubset": "CD4+ T"}},
		{"snake", map[string]string{"mhc_class": "MHCI", "structure_id": "S1", "cell_subset": "CD4+ T"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := MetaFromRaw(tc.raw)
			assert.Equal(t, "MHCI", meta.MHCClass)
			assert.Equal(t, "S1", meta.StructureID)
			assert.Equal(t, "CD4+ T", meta.CellSubset)
		})
	}
}

func TestClusterMeta_UnmarshalJSON(t *testing.T) {
	var meta ClusterMeta
	payload := `{"species": "HomoSapiens", "gene": "TRB", "mhc.class": "MHCI", "mhc.a": "HLA-A*02:01", "antigen.epitope": "GILGFVFTL", "structure.id": "7n2p"}`
	require.NoError(t, meta.UnmarshalJSON([]byte(payload)))
	assert.Equal(t, "HomoSapiens", meta.Species)
	assert.Equal(t, "TRB", meta.Gene)
	assert.Equal(t, "HLA-A*02:01", meta.MHCA)
	assert.Equal(t, "7n2p", meta.StructureID)
	assert.True(t, meta.HasStructure())
}

func TestNormalizeFilterResponse_Canonical(t *testing.T) {
	payload := `{"epitopes": [{"epitope": "GILGFVFTL", "hash": "h1", "clusters": [{"clusterId": "c1", "size": 10, "meta": {"structure.id": "s1"}}]}]}`
	epitopes, err := NormalizeFilterResponse([]byte(payload), nil)
	require.NoError(t, err)
	require.Len(t, epitopes, 1)
	assert.Equal(t, "h1", epitopes[0].Hash)
	require.Len(t, epitopes[0].Clusters, 1)
	assert.Equal(t, "s1", epitopes[0].Clusters[0].Meta.StructureID)
}

func TestNormalizeFilterResponse_LegacyItems(t *testing.T) {
	payload := `{"items": [
		{"cluster.id": "c1", "size": 4, "antigen.epitope": "GILGFVFTL", "structure.id": "s1"},
		{"clusterId": "c2", "size": "7", "structure_id": "s2"}
	]}`
	active := []FilterEntry{{Name: "species", Value: "HomoSapiens"}, {Name: "epitope", Value: "GILGFVFTL"}}

	first, err := NormalizeFilterResponse([]byte(payload), active)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "GILGFVFTL", first[0].Epitope)
	require.Len(t, first[0].Clusters, 2)
	assert.Equal(t, 7, first[0].Clusters[1].Size)
	assert.Equal(t, "s2", first[0].Clusters[1].Meta.StructureID)

	// Same query, same identity: dedup across repeated loads depends on it.
	second, err := NormalizeFilterResponse([]byte(payload), active)
	require.NoError(t, err)
	assert.Equal(t, first[0].Hash, second[0].Hash)

	// Without a filter the identity falls back to a content hash.
	third, err := NormalizeFilterResponse([]byte(payload), nil)
	require.NoError(t, err)
	fourth, err := NormalizeFilterResponse([]byte(payload), nil)
	require.NoError(t, err)
	assert.Equal(t, third[0].Hash, fourth[0].Hash)
	assert.NotEqual(t, first[0].Hash, third[0].Hash)
}

func TestNormalizeFilterResponse_Malformed(t *testing.T) {
	_, err := NormalizeFilterResponse([]byte(`{"unexpected": true}`), nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNormalizeCDR3Response_Canonical(t *testing.T) {
	payload := `{
		"options": {"cdr3": "CASS", "substring": true, "gene": "TRB", "top": 15},
		"clusters": [{"info": 3.5, "cdr3": "CASSLG", "cluster": {"clusterId": "c1", "size": 2}}],
		"clustersNorm": [{"info": 1.75, "cdr3": "CASSLG", "cluster": {"clusterId": "c1", "size": 2}}]
	}`
	result, err := NormalizeCDR3Response([]byte(payload), DefaultCDR3SearchOptions())
	require.NoError(t, err)
	assert.Equal(t, "CASS", result.Options.CDR3)
	require.Len(t, result.Clusters, 1)
	require.Len(t, result.ClustersNorm, 1)
	assert.InDelta(t, 3.5, result.Clusters[0].Info, 1e-9)
}

func TestNormalizeCDR3Response_LegacyItems(t *testing.T) {
	payload := `{"items": [
		{"cdr3": "CASSLG", "info": "6", "cluster.id": "c1", "size": 3, "structure.id": "s1"}
	]}`
	opts := CDR3SearchOptions{CDR3: "CASSLG", Gene: "Both", Top: 15}
	result, err := NormalizeCDR3Response([]byte(payload), opts)
	require.NoError(t, err)
	assert.Equal(t, opts, result.Options)
	require.Len(t, result.Clusters, 1)
	require.Len(t, result.ClustersNorm, 1)
	assert.InDelta(t, 6.0, result.Clusters[0].Info, 1e-9)
	assert.InDelta(t, 2.0, result.ClustersNorm[0].Info, 1e-9)
}

func TestNormalizeCDR3Response_Malformed(t *testing.T) {
	_, err := NormalizeCDR3Response([]byte(`{}`), DefaultCDR3SearchOptions())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
