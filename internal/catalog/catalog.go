package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/shopspring/decimal"
)

// Court is a bookable resource.
type Court struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	PricePerHour decimal.Decimal `json:"pricePerHour"`
	IsActive     bool            `json:"isActive"`
}

// Catalog resolves courts and their pricing.
type Catalog interface {
	Court(ctx context.Context, id string) (*Court, error)
	CourtTx(ctx context.Context, tx *sql.Tx, id string) (*Court, error)
	List(ctx context.Context, activeOnly bool) ([]Court, error)
	Upsert(ctx context.Context, court Court) (*Court, error)
}

type store struct {
	db *sql.DB
}

// New creates a Catalog backed by the courts table.
func New(db *sql.DB) Catalog {
	return &store{db: db}
}

const courtColumns = `id, name, COALESCE(description, ''), price_per_hour, is_active`

func scanCourt(row interface{ Scan(...any) error }) (*Court, error) {
	var c Court
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.PricePerHour, &c.IsActive); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *store) Court(ctx context.Context, id string) (*Court, error) {
	return getCourt(s.db.QueryRowContext(ctx, `SELECT `+courtColumns+` FROM courts WHERE id = ?`, id), id)
}

func (s *store) CourtTx(ctx context.Context, tx *sql.Tx, id string) (*Court, error) {
	return getCourt(tx.QueryRowContext(ctx, `SELECT `+courtColumns+` FROM courts WHERE id = ?`, id), id)
}

func getCourt(row *sql.Row, id string) (*Court, error) {
	c, err := scanCourt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("court %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get court: %w", err)
	}
	return c, nil
}

func (s *store) List(ctx context.Context, activeOnly bool) ([]Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	defer rows.Close()

	courts := []Court{}
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan court: %w", err)
		}
		courts = append(courts, *c)
	}
	return courts, rows.Err()
}

// Upsert creates the court, or updates it when the id already exists.
func (s *store) Upsert(ctx context.Context, court Court) (*Court, error) {
	if court.Name == "" {
		return nil, apperr.Validationf("court name is required")
	}
	if court.PricePerHour.IsNegative() {
		return nil, apperr.Validationf("price per hour cannot be negative")
	}
	if court.ID == "" {
		court.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courts (id, name, description, price_per_hour, is_active)
		VALUES (?, ?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price_per_hour = excluded.price_per_hour,
			is_active = excluded.is_active`,
		court.ID, court.Name, court.Description, court.PricePerHour, court.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert court: %w", err)
	}
	log.Info("Upserted court", "courtID", court.ID, "name", court.Name, "active", court.IsActive)
	return &court, nil
}
