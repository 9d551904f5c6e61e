package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/structable/pkg/model"
)

func TestHTTPSource_MetadataAndFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case metadataEndpoint:
			w.Write([]byte(`{"root": {"name": "species", "values": [{"value": "HomoSapiens", "next": null, "hash": "h1"}]}}`))
		case filterEndpoint:
			var filter model.TreeFilter
			require.NoError(t, json.NewDecoder(r.Body).Decode(&filter))
			assert.Equal(t, "species", filter.Entries[0].Name)
			w.Write([]byte(`{"epitopes": [{"epitope": "GILGFVFTL", "hash": "h1", "clusters": []}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)

	metadata, err := source.Metadata(context.Background())
	require.NoError(t, err)
	require.NotNil(t, metadata.Root)
	assert.Equal(t, "species", metadata.Root.Name)

	epitopes, err := source.Filter(context.Background(), model.TreeFilter{
		Entries: []model.FilterEntry{{Name: "species", Value: "HomoSapiens"}},
	})
	require.NoError(t, err)
	require.Len(t, epitopes, 1)
	assert.Equal(t, "h1", epitopes[0].Hash)
}

func TestHTTPSource_SearchCDR3LegacyShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, cdr3Endpoint, r.URL.Path)
		w.Write([]byte(`{"items": [{"cdr3": "CASSLG", "info": 2, "cluster.id": "c1", "size": 4}]}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	result, err := source.SearchCDR3(context.Background(), CDR3Request{CDR3: "CASSLG", Gene: "Both", Top: 15})
	require.NoError(t, err)
	require.Len(t, result.Clusters, 1)
	assert.Equal(t, "CASSLG", result.Options.CDR3)
	assert.InDelta(t, 0.5, result.ClustersNorm[0].Info, 1e-9)
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	_, err := source.Metadata(context.Background())
	assert.Error(t, err)
}
