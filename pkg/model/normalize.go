package model

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Backends answer filter and CDR3 requests in one of two shapes: the
// canonical nested one, or a legacy flat {items: [...]} list. Both are
// decoded explicitly here and mapped to the canonical entities; nothing
// downstream ever sees the legacy shape.

var ErrMalformedResponse = fmt.Errorf("malformed response: missing expected arrays")

type filterEnvelope struct {
	Epitopes json.RawMessage `json:"epitopes"`
	Items    json.RawMessage `json:"items"`
}

type cdr3Envelope struct {
	Options      json.RawMessage `json:"options"`
	Clusters     json.RawMessage `json:"clusters"`
	ClustersNorm json.RawMessage `json:"clustersNorm"`
	Items        json.RawMessage `json:"items"`
}

// NormalizeFilterResponse decodes a filter payload into canonical epitopes.
// The active filter entries participate in identity derivation for the
// legacy shape, so that repeating the same query yields the same hash and
// dedup can take hold.
func NormalizeFilterResponse(payload []byte, active []FilterEntry) ([]*Epitope, error) {
	var env filterEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode filter response: %w", err)
	}
	if env.Epitopes != nil {
		var epitopes []*Epitope
		if err := json.Unmarshal(env.Epitopes, &epitopes); err != nil {
			return nil, fmt.Errorf("decode epitopes: %w", err)
		}
		return epitopes, nil
	}
	if env.Items != nil {
		items, err := decodeItems(env.Items)
		if err != nil {
			return nil, err
		}
		return []*Epitope{synthesizeEpitope(items, active)}, nil
	}
	return nil, ErrMalformedResponse
}

// NormalizeCDR3Response decodes a CDR3 search payload into the canonical
// result with raw and size-normalized entry lists.
func NormalizeCDR3Response(payload []byte, requested CDR3SearchOptions) (*CDR3SearchResult, error) {
	var env cdr3Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode cdr3 response: %w", err)
	}
	if env.Clusters != nil {
		result := &CDR3SearchResult{Options: requested}
		if env.Options != nil {
			if err := json.Unmarshal(env.Options, &result.Options); err != nil {
				return nil, fmt.Errorf("decode cdr3 options: %w", err)
			}
		}
		if err := json.Unmarshal(env.Clusters, &result.Clusters); err != nil {
			return nil, fmt.Errorf("decode cdr3 clusters: %w", err)
		}
		if env.ClustersNorm != nil {
			if err := json.Unmarshal(env.ClustersNorm, &result.ClustersNorm); err != nil {
				return nil, fmt.Errorf("decode cdr3 clustersNorm: %w", err)
			}
		} else {
			result.ClustersNorm = []*SearchResultEntry{}
		}
		return result, nil
	}
	if env.Items != nil {
		items, err := decodeItems(env.Items)
		if err != nil {
			return nil, err
		}
		return synthesizeCDR3Result(items, requested), nil
	}
	return nil, ErrMalformedResponse
}

func decodeItems(raw json.RawMessage) ([]map[string]string, error) {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode legacy items: %w", err)
	}
	items := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		flat := make(map[string]string, len(row))
		for k, v := range row {
			flat[k] = rawToString(v)
		}
		items = append(items, flat)
	}
	return items, nil
}

// synthesizeEpitope wraps legacy flat items into a single epitope whose
// hash is deterministic: derived from the active filter entries when a
// filter is in effect, otherwise from the item content itself.
func synthesizeEpitope(items []map[string]string, active []FilterEntry) *Epitope {
	clusters := make([]*Cluster, 0, len(items))
	for i, item := range items {
		clusters = append(clusters, itemToCluster(item, i))
	}
	epitope := ""
	if len(items) > 0 {
		epitope = pickItem(items[0], "antigen.epitope", "antigenEpitope", "epitope")
	}
	return &Epitope{
		Epitope:  epitope,
		Hash:     legacyHash(items, active),
		Clusters: clusters,
	}
}

func synthesizeCDR3Result(items []map[string]string, requested CDR3SearchOptions) *CDR3SearchResult {
	result := &CDR3SearchResult{
		Options:      requested,
		Clusters:     make([]*SearchResultEntry, 0, len(items)),
		ClustersNorm: make([]*SearchResultEntry, 0, len(items)),
	}
	for i, item := range items {
		cluster := itemToCluster(item, i)
		info := parseFloatItem(item, "info", "informativeness")
		cdr3 := pickItem(item, "cdr3")
		result.Clusters = append(result.Clusters, &SearchResultEntry{
			Info:    info,
			CDR3:    cdr3,
			Cluster: cluster,
		})
		norm := info
		if cluster.Size > 0 {
			norm = info / float64(cluster.Size)
		}
		result.ClustersNorm = append(result.ClustersNorm, &SearchResultEntry{
			Info:    norm,
			CDR3:    cdr3,
			Cluster: cluster,
		})
	}
	return result
}

func itemToCluster(item map[string]string, ordinal int) *Cluster {
	meta := MetaFromRaw(item)
	id := pickItem(item, "cluster.id", "clusterId", "cid")
	if id == "" {
		id = meta.StructureID
	}
	if id == "" {
		id = "item-" + strconv.Itoa(ordinal)
	}
	return &Cluster{
		ClusterID: id,
		Size:      parseIntItem(item, "size"),
		Length:    parseIntItem(item, "length"),
		VSegm:     pickItem(item, "vsegm", "v.segm", "v"),
		JSegm:     pickItem(item, "jsegm", "j.segm", "j"),
		Meta:      meta,
	}
}

// legacyHash builds the deterministic identity of a synthesized epitope.
func legacyHash(items []map[string]string, active []FilterEntry) string {
	if len(active) > 0 {
		parts := make([]string, 0, len(active))
		for _, entry := range active {
			parts = append(parts, entry.Name+"="+entry.Value)
		}
		sort.Strings(parts)
		return strings.Join(parts, "|")
	}
	h := fnv.New64a()
	for _, item := range items {
		keys := make([]string, 0, len(item))
		for k := range item {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			h.Write([]byte(item[k]))
			h.Write([]byte{0})
		}
	}
	return "content-" + strconv.FormatUint(h.Sum64(), 16)
}

func pickItem(item map[string]string, keys ...string) string {
	canon := make(map[string]string, len(item))
	for k, v := range item {
		ck := canonicalMetaKey(k)
		if _, ok := canon[ck]; !ok {
			canon[ck] = v
		}
	}
	for _, k := range keys {
		if v, ok := canon[canonicalMetaKey(k)]; ok && v != "" {
			return v
		}
	}
	return ""
}

func parseIntItem(item map[string]string, keys ...string) int {
	v := pickItem(item, keys...)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func parseFloatItem(item map[string]string, keys ...string) float64 {
	v := pickItem(item, keys...)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
