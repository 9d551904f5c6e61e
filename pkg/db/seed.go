package db

// Snapshot building helpers. Used by the snapshot importer and by tests.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yumyai/structable/pkg/model"
)

func (s *Store) InsertPath(ctx context.Context, species, chain, mhcClass, gene, epitope, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tree_paths (species, chain, mhc_class, gene, epitope, hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		species, chain, mhcClass, gene, epitope, hash)
	if err != nil {
		return fmt.Errorf("insert tree path %s: %w", hash, err)
	}
	return nil
}

func (s *Store) InsertCluster(ctx context.Context, epitopeHash string, c *model.Cluster) error {
	metaJSON, err := json.Marshal(c.Meta)
	if err != nil {
		return fmt.Errorf("encode cluster meta %s: %w", c.ClusterID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clusters (cluster_id, epitope_hash, size, length, v_segm, j_segm, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ClusterID, epitopeHash, c.Size, c.Length, c.VSegm, c.JSegm, string(metaJSON))
	if err != nil {
		return fmt.Errorf("insert cluster %s: %w", c.ClusterID, err)
	}
	for _, entry := range c.Entries {
		if err := s.InsertEntry(ctx, c.ClusterID, entry.CDR3, entry.Count, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertEntry(ctx context.Context, clusterID, cdr3 string, count int, info float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cluster_entries (cluster_id, cdr3, count, info) VALUES (?, ?, ?, ?)`,
		clusterID, cdr3, count, info)
	if err != nil {
		return fmt.Errorf("insert cluster entry %s/%s: %w", clusterID, cdr3, err)
	}
	return nil
}

func (s *Store) InsertAvailability(ctx context.Context, kind, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO availability (kind, key) VALUES (?, ?)`, kind, key)
	if err != nil {
		return fmt.Errorf("insert availability %s: %w", key, err)
	}
	return nil
}
