package db

// Local snapshot of the structures backend. The snapshot is immutable
// reference data (metadata paths, clusters, member sequences, availability
// sets) kept in a SQLite file, letting the engine run without a live
// backend.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yumyai/structable/pkg/api"
	"github.com/yumyai/structable/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tree_paths (
	species   TEXT NOT NULL,
	chain     TEXT NOT NULL,
	mhc_class TEXT NOT NULL,
	gene      TEXT NOT NULL,
	epitope   TEXT NOT NULL,
	hash      TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS clusters (
	cluster_id   TEXT PRIMARY KEY,
	epitope_hash TEXT NOT NULL,
	size         INTEGER NOT NULL DEFAULT 0,
	length       INTEGER NOT NULL DEFAULT 0,
	v_segm       TEXT NOT NULL DEFAULT '',
	j_segm       TEXT NOT NULL DEFAULT '',
	meta_json    TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS cluster_entries (
	cluster_id TEXT NOT NULL,
	cdr3       TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 1,
	info       REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS availability (
	kind TEXT NOT NULL,
	key  TEXT NOT NULL
);
`

// Level names of the metadata hierarchy, root to leaf.
var levelNames = []string{"species", "chain", "mhc.class", "gene", "epitope"}

type Store struct {
	db *sql.DB
}

var _ api.Source = (*Store)(nil)

// Open connects to a snapshot database file. The sqlite driver must be
// registered by the caller (blank import of modernc.org/sqlite).
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	return &Store{db: conn}, nil
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the snapshot tables when missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init snapshot schema: %w", err)
	}
	return nil
}

type pathRow struct {
	species, chain, mhcClass, gene, epitope, hash string
}

func (r pathRow) parts() []string {
	return []string{r.species, r.chain, r.mhcClass, r.gene, r.epitope}
}

// Metadata pivots the flat path rows into the nested facet-tree shape.
func (s *Store) Metadata(ctx context.Context) (*model.Metadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT species, chain, mhc_class, gene, epitope, hash
		FROM tree_paths
		ORDER BY species, chain, mhc_class, gene, epitope`)
	if err != nil {
		return nil, fmt.Errorf("query tree paths: %w", err)
	}
	defer rows.Close()

	var paths []pathRow
	for rows.Next() {
		var r pathRow
		if err := rows.Scan(&r.species, &r.chain, &r.mhcClass, &r.gene, &r.epitope, &r.hash); err != nil {
			return nil, fmt.Errorf("scan tree path: %w", err)
		}
		paths = append(paths, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tree path rows: %w", err)
	}

	return &model.Metadata{Root: buildLevel(paths, 0)}, nil
}

// buildLevel groups path rows by their value at the given depth, recursing
// until the epitope leaves. Values come out in sorted order, matching the
// ORDER BY of the source query.
func buildLevel(paths []pathRow, depth int) *model.FacetTreeLevel {
	grouped := make(map[string][]pathRow)
	for _, p := range paths {
		value := p.parts()[depth]
		grouped[value] = append(grouped[value], p)
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	level := &model.FacetTreeLevel{Name: levelNames[depth]}
	for _, k := range keys {
		value := &model.FacetTreeLevelValue{Value: k}
		if depth == len(levelNames)-1 {
			value.Hash = grouped[k][0].hash
		} else {
			value.Next = buildLevel(grouped[k], depth+1)
		}
		level.Values = append(level.Values, value)
	}
	return level
}

var entryColumns = map[string]string{
	"species":   "species",
	"chain":     "chain",
	"mhc.class": "mhc_class",
	"gene":      "gene",
	"epitope":   "epitope",
	"hash":      "hash",
}

// Filter resolves the selected tree paths and assembles their epitopes with
// clusters and member entries. Entries sharing a name are OR-ed, distinct
// names are AND-ed.
func (s *Store) Filter(ctx context.Context, filter model.TreeFilter) ([]*model.Epitope, error) {
	query := `SELECT epitope, hash FROM tree_paths`
	var args []interface{}

	grouped := make(map[string][]string)
	var names []string
	for _, entry := range filter.Entries {
		column, ok := entryColumns[entry.Name]
		if !ok {
			continue
		}
		if _, seen := grouped[column]; !seen {
			names = append(names, column)
		}
		grouped[column] = append(grouped[column], entry.Value)
	}
	if len(names) > 0 {
		query += " WHERE "
		for i, column := range names {
			if i > 0 {
				query += " AND "
			}
			query += column + " IN (?" + strings.Repeat(",?", len(grouped[column])-1) + ")"
			for _, v := range grouped[column] {
				args = append(args, v)
			}
		}
	}
	query += " ORDER BY species, chain, mhc_class, gene, epitope"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query filtered paths: %w", err)
	}
	defer rows.Close()

	var epitopes []*model.Epitope
	for rows.Next() {
		ep := &model.Epitope{}
		if err := rows.Scan(&ep.Epitope, &ep.Hash); err != nil {
			return nil, fmt.Errorf("scan filtered path: %w", err)
		}
		epitopes = append(epitopes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("filtered path rows: %w", err)
	}

	for _, ep := range epitopes {
		clusters, err := s.clustersForEpitope(ctx, ep.Hash)
		if err != nil {
			return nil, err
		}
		ep.Clusters = clusters
	}
	return epitopes, nil
}

func (s *Store) clustersForEpitope(ctx context.Context, hash string) ([]*model.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, size, length, v_segm, j_segm, meta_json
		FROM clusters
		WHERE epitope_hash = ?
		ORDER BY cluster_id`, hash)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*model.Cluster
	for rows.Next() {
		c := &model.Cluster{}
		var metaJSON string
		if err := rows.Scan(&c.ClusterID, &c.Size, &c.Length, &c.VSegm, &c.JSegm, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Meta); err != nil {
			return nil, fmt.Errorf("decode cluster meta %s: %w", c.ClusterID, err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cluster rows: %w", err)
	}

	for _, c := range clusters {
		entries, err := s.entriesForCluster(ctx, c.ClusterID)
		if err != nil {
			return nil, err
		}
		c.Entries = entries
	}
	return clusters, nil
}

func (s *Store) entriesForCluster(ctx context.Context, clusterID string) ([]model.ClusterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cdr3, count FROM cluster_entries WHERE cluster_id = ? ORDER BY cdr3`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster entries: %w", err)
	}
	defer rows.Close()

	var entries []model.ClusterEntry
	for rows.Next() {
		var e model.ClusterEntry
		if err := rows.Scan(&e.CDR3, &e.Count); err != nil {
			return nil, fmt.Errorf("scan cluster entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SearchCDR3 matches member sequences exactly, or by containment in
// substring mode, and returns both the raw and the size-normalized entry
// lists.
func (s *Store) SearchCDR3(ctx context.Context, req api.CDR3Request) (*model.CDR3SearchResult, error) {
	query := `
		SELECT ce.cdr3, ce.info, c.cluster_id, c.size, c.length, c.v_segm, c.j_segm, c.meta_json
		FROM cluster_entries ce
		JOIN clusters c ON c.cluster_id = ce.cluster_id
		JOIN tree_paths tp ON tp.hash = c.epitope_hash`
	var args []interface{}

	if req.Substring {
		query += " WHERE instr(ce.cdr3, ?) > 0"
	} else {
		query += " WHERE ce.cdr3 = ?"
	}
	args = append(args, req.CDR3)

	if req.Gene != "" && req.Gene != "Both" {
		query += " AND tp.chain = ?"
		args = append(args, req.Gene)
	}
	query += " ORDER BY ce.info DESC, c.size DESC"
	if req.Top > 0 {
		query += " LIMIT ?"
		args = append(args, req.Top)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cdr3 entries: %w", err)
	}
	defer rows.Close()

	result := &model.CDR3SearchResult{
		Options: model.CDR3SearchOptions{
			CDR3:      req.CDR3,
			Substring: req.Substring,
			Gene:      req.Gene,
			Top:       req.Top,
		},
		Clusters:     []*model.SearchResultEntry{},
		ClustersNorm: []*model.SearchResultEntry{},
	}
	for rows.Next() {
		c := &model.Cluster{}
		var cdr3 string
		var info float64
		var metaJSON string
		if err := rows.Scan(&cdr3, &info, &c.ClusterID, &c.Size, &c.Length, &c.VSegm, &c.JSegm, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan cdr3 entry: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Meta); err != nil {
			return nil, fmt.Errorf("decode cluster meta %s: %w", c.ClusterID, err)
		}
		result.Clusters = append(result.Clusters, &model.SearchResultEntry{Info: info, CDR3: cdr3, Cluster: c})

		norm := info
		if c.Size > 0 {
			norm = info / float64(c.Size)
		}
		result.ClustersNorm = append(result.ClustersNorm, &model.SearchResultEntry{Info: norm, CDR3: cdr3, Cluster: c})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cdr3 rows: %w", err)
	}
	return result, nil
}

// Members points at the exported member list of a cluster inside the
// snapshot directory layout.
func (s *Store) Members(ctx context.Context, req api.MembersRequest) (*api.MembersResponse, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters WHERE cluster_id = ?`, req.CID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query cluster %s: %w", req.CID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("unknown cluster %s", req.CID)
	}
	format := req.Format
	if format == "" {
		format = "tsv"
	}
	return &api.MembersResponse{Link: "/downloads/members/" + req.CID + "." + format}, nil
}

func (s *Store) Availability(ctx context.Context) (*api.AvailabilityResponse, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, key FROM availability ORDER BY kind, key`)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()

	resp := &api.AvailabilityResponse{}
	for rows.Next() {
		var kind, key string
		if err := rows.Scan(&kind, &key); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		switch kind {
		case "structure":
			resp.Structures = append(resp.Structures, key)
		case "motif":
			resp.Motifs = append(resp.Motifs, key)
		}
	}
	return resp, rows.Err()
}
