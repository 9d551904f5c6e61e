package model

import (
	"encoding/json"
	"strings"
)

// ClusterMeta is the flat record of biological attributes attached to a
// cluster. Backends spell the keys inconsistently ("mhc.class", "mhcclass",
// "mhcClass", "mhc_class"), so decoding goes through a canonicalized key
// lookup instead of struct tags.
type ClusterMeta struct {
	Species        string
	Gene           string // TCR chain, TRA or TRB
	MHCClass       string
	MHCA           string
	MHCB           string
	AntigenGene    string
	AntigenSpecies string
	CellSubset     string
	StructureID    string
}

// Canonical key spellings used when re-encoding.
const (
	metaKeySpecies        = "species"
	metaKeyGene           = "gene"
	metaKeyMHCClass       = "mhc.class"
	metaKeyMHCA           = "mhc.a"
	metaKeyMHCB           = "mhc.b"
	metaKeyAntigenGene    = "antigen.gene"
	metaKeyAntigenSpecies = "antigen.species"
	metaKeyCellSubset     = "cell.subset"
	metaKeyStructureID    = "structure.id"
)

// canonicalMetaKey strips separators and case so that "mhc.class",
// "mhcClass", "MHC_Class" and "mhc-class" all collapse to "mhcclass".
func canonicalMetaKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch r {
		case '.', '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// MetaFromRaw builds a ClusterMeta from a raw key/value record, tolerating
// any of the known key spellings.
func MetaFromRaw(raw map[string]string) ClusterMeta {
	canon := make(map[string]string, len(raw))
	for k, v := range raw {
		ck := canonicalMetaKey(k)
		if _, ok := canon[ck]; !ok {
			canon[ck] = v
		}
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := canon[k]; ok && v != "" {
				return v
			}
		}
		return ""
	}
	return ClusterMeta{
		Species:        pick("species"),
		Gene:           pick("gene", "tcrchain", "chain"),
		MHCClass:       pick("mhcclass"),
		MHCA:           pick("mhca"),
		MHCB:           pick("mhcb"),
		AntigenGene:    pick("antigengene"),
		AntigenSpecies: pick("antigenspecies"),
		CellSubset:     pick("cellsubset", "subset"),
		StructureID:    pick("structureid"),
	}
}

// HasStructure reports whether the meta record resolves to a non-empty
// structure identifier. Rows without one carry no visual evidence and are
// dropped during aggregation.
func (m ClusterMeta) HasStructure() bool {
	return strings.TrimSpace(m.StructureID) != ""
}

func (m *ClusterMeta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	flat := make(map[string]string, len(raw))
	for k, v := range raw {
		flat[k] = rawToString(v)
	}
	*m = MetaFromRaw(flat)
	return nil
}

func (m ClusterMeta) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, 9)
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	put(metaKeySpecies, m.Species)
	put(metaKeyGene, m.Gene)
	put(metaKeyMHCClass, m.MHCClass)
	put(metaKeyMHCA, m.MHCA)
	put(metaKeyMHCB, m.MHCB)
	put(metaKeyAntigenGene, m.AntigenGene)
	put(metaKeyAntigenSpecies, m.AntigenSpecies)
	put(metaKeyCellSubset, m.CellSubset)
	put(metaKeyStructureID, m.StructureID)
	return json.Marshal(out)
}

// rawToString renders a scalar JSON value as its plain string form. Strings
// lose their quotes, everything else keeps its literal spelling.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
