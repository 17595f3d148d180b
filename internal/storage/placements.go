// Package storage provides the placement catalog and partner credential store
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Placement maps a mediation placement onto the partner's placement and format
type Placement struct {
	ID                 string    `json:"id"`
	MediationPlacement string    `json:"mediation_placement"`
	PartnerPlacement   string    `json:"partner_placement"`
	Format             string    `json:"format"`
	BannerWidth        *int      `json:"banner_width,omitempty"`
	BannerHeight       *int      `json:"banner_height,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PlacementCatalog looks up placement mappings
type PlacementCatalog interface {
	GetByMediationPlacement(ctx context.Context, mediationPlacement string) (*Placement, error)
}

// PlacementStore provides database operations for placements
type PlacementStore struct {
	db *sql.DB
}

// NewPlacementStore creates a new placement store
func NewPlacementStore(db *sql.DB) *PlacementStore {
	return &PlacementStore{db: db}
}

// CreateTable creates the placements table if it does not exist
func (s *PlacementStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS placements (
			id                  SERIAL PRIMARY KEY,
			mediation_placement TEXT NOT NULL UNIQUE,
			partner_placement   TEXT NOT NULL,
			format              TEXT NOT NULL,
			banner_width        INTEGER,
			banner_height       INTEGER,
			status              TEXT NOT NULL DEFAULT 'active',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create placements table: %w", err)
	}
	return nil
}

// GetByMediationPlacement retrieves an active placement.
// Returns nil, nil when the placement is unknown.
func (s *PlacementStore) GetByMediationPlacement(ctx context.Context, mediationPlacement string) (*Placement, error) {
	query := `
		SELECT id, mediation_placement, partner_placement, format,
		       banner_width, banner_height, status, created_at, updated_at
		FROM placements
		WHERE mediation_placement = $1 AND status = 'active'
	`

	p, err := scanPlacement(s.db.QueryRowContext(ctx, query, mediationPlacement))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query placement: %w", err)
	}
	return p, nil
}

// List retrieves all active placements
func (s *PlacementStore) List(ctx context.Context) ([]*Placement, error) {
	query := `
		SELECT id, mediation_placement, partner_placement, format,
		       banner_width, banner_height, status, created_at, updated_at
		FROM placements
		WHERE status = 'active'
		ORDER BY mediation_placement
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	placements := make([]*Placement, 0)
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placement row: %w", err)
		}
		placements = append(placements, p)
	}

	return placements, rows.Err()
}

// Upsert creates or replaces the mapping for p.MediationPlacement
func (s *PlacementStore) Upsert(ctx context.Context, p *Placement) error {
	query := `
		INSERT INTO placements (
			mediation_placement, partner_placement, format, banner_width, banner_height, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mediation_placement) DO UPDATE
		SET partner_placement = EXCLUDED.partner_placement,
		    format = EXCLUDED.format,
		    banner_width = EXCLUDED.banner_width,
		    banner_height = EXCLUDED.banner_height,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	status := p.Status
	if status == "" {
		status = "active"
	}

	err := s.db.QueryRowContext(ctx, query,
		p.MediationPlacement,
		p.PartnerPlacement,
		p.Format,
		p.BannerWidth,
		p.BannerHeight,
		status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert placement: %w", err)
	}
	p.Status = status
	return nil
}

// Delete archives a placement
func (s *PlacementStore) Delete(ctx context.Context, mediationPlacement string) error {
	query := `
		UPDATE placements
		SET status = 'archived', updated_at = NOW()
		WHERE mediation_placement = $1
	`

	result, err := s.db.ExecContext(ctx, query, mediationPlacement)
	if err != nil {
		return fmt.Errorf("failed to delete placement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("placement not found: %s", mediationPlacement)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlacement(row rowScanner) (*Placement, error) {
	var p Placement
	var width, height sql.NullInt32

	err := row.Scan(
		&p.ID,
		&p.MediationPlacement,
		&p.PartnerPlacement,
		&p.Format,
		&width,
		&height,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if width.Valid {
		w := int(width.Int32)
		p.BannerWidth = &w
	}
	if height.Valid {
		h := int(height.Int32)
		p.BannerHeight = &h
	}
	return &p, nil
}
