package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertCluster creates a new cluster row.
func (s *Store) InsertCluster(ctx context.Context, c *Cluster) error {
	centroidJSON, err := json.Marshal(c.Centroid)
	if err != nil {
		return fmt.Errorf("InsertCluster: marshal centroid: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO clusters (id, cluster_type, name, centroid) VALUES (?,?,?,?)`,
		c.ID, c.Type, c.Name, string(centroidJSON))
	if err != nil {
		return fmt.Errorf("InsertCluster: %w", err)
	}
	return nil
}

func scanCluster(row interface{ Scan(...any) error }) (*Cluster, error) {
	var c Cluster
	var centroidJSON sql.NullString
	if err := row.Scan(&c.ID, &c.Type, &c.Name, &centroidJSON); err != nil {
		return nil, err
	}
	if centroidJSON.Valid && centroidJSON.String != "" && centroidJSON.String != "null" {
		if err := json.Unmarshal([]byte(centroidJSON.String), &c.Centroid); err != nil {
			return nil, fmt.Errorf("scanCluster: unmarshal centroid: %w", err)
		}
	}
	return &c, nil
}

// GetCluster retrieves a cluster by id.
func (s *Store) GetCluster(ctx context.Context, id string) (*Cluster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, cluster_type, name, centroid FROM clusters WHERE id = ?`, id)
	c, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetCluster: %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("GetCluster: %w", err)
	}
	return c, nil
}

// ListClusters returns every cluster, optionally filtered by type (empty
// means any type).
func (s *Store) ListClusters(ctx context.Context, clusterType ClusterType) ([]*Cluster, error) {
	query := `SELECT id, cluster_type, name, centroid FROM clusters`
	args := []any{}
	if clusterType != "" {
		query += ` WHERE cluster_type = ?`
		args = append(args, clusterType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListClusters: %w", err)
	}
	defer rows.Close()
	var out []*Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("ListClusters: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateClusterCentroid writes the recalculated centroid of a cluster.
func (s *Store) UpdateClusterCentroid(ctx context.Context, id string, centroid Embedding) error {
	centroidJSON, err := json.Marshal(centroid)
	if err != nil {
		return fmt.Errorf("UpdateClusterCentroid: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE clusters SET centroid = ? WHERE id = ?`, string(centroidJSON), id)
	if err != nil {
		return fmt.Errorf("UpdateClusterCentroid: %w", err)
	}
	return mustAffectOne(res, "UpdateClusterCentroid", id)
}

// DeleteCluster removes a cluster row; callers must detach its graph node
// and any MEMBER_OF edges first.
func (s *Store) DeleteCluster(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteCluster: %w", err)
	}
	return nil
}
