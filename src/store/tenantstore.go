package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marianofino/pocket-mqtt/src/models"
)

// TenantStore persists and looks up tenants. Uniqueness on name and apiKey
// is enforced by the underlying schema (§3.1); concurrent creations racing
// on either column surface as ErrAlreadyExists.
type TenantStore interface {
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error)
	Create(ctx context.Context, name, apiKey string) (*models.Tenant, error)
	List(ctx context.Context, page Pagination) ([]*models.Tenant, error)
	Count(ctx context.Context) (int64, error)
}

// PgTenantStore is the Postgres-backed TenantStore implementation.
type PgTenantStore struct {
	pool *pgxpool.Pool
}

func NewPgTenantStore(pool *pgxpool.Pool) *PgTenantStore {
	return &PgTenantStore{pool: pool}
}

func (s *PgTenantStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	return s.find(ctx, "SELECT id, name, api_key, created_at FROM tenants WHERE name = $1", name)
}

func (s *PgTenantStore) FindByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	return s.find(ctx, "SELECT id, name, api_key, created_at FROM tenants WHERE api_key = $1", apiKey)
}

func (s *PgTenantStore) find(ctx context.Context, query string, arg string) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx, query, arg)

	var t models.Tenant
	var createdAt time.Time
	if err := row.Scan(&t.ID, &t.Name, &t.APIKey, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	t.CreatedAt = createdAt
	return &t, nil
}

func (s *PgTenantStore) Create(ctx context.Context, name, apiKey string) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, api_key) VALUES ($1, $2)
		 RETURNING id, name, api_key, created_at`,
		name, apiKey,
	)

	var t models.Tenant
	var createdAt time.Time
	if err := row.Scan(&t.ID, &t.Name, &t.APIKey, &createdAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert tenant: %w", err)
	}
	t.CreatedAt = createdAt
	return &t, nil
}

func (s *PgTenantStore) List(ctx context.Context, page Pagination) ([]*models.Tenant, error) {
	page = page.Normalize()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, api_key, created_at FROM tenants
		 ORDER BY id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		var createdAt time.Time
		if err := rows.Scan(&t.ID, &t.Name, &t.APIKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		t.CreatedAt = createdAt
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant rows: %w", err)
	}
	return out, nil
}

func (s *PgTenantStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM tenants").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	return count, nil
}
