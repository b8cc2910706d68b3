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

// DeviceCredentialStore persists device credentials. All operations are
// scoped by tenantId at the caller; the store itself enforces only
// uniqueness on deviceId and tokenLookup (§4.2).
type DeviceCredentialStore interface {
	FindByTokenLookup(ctx context.Context, lookup string) (*models.DeviceCredential, error)
	FindByDeviceID(ctx context.Context, deviceID string) (*models.DeviceCredential, error)
	Create(ctx context.Context, c *models.DeviceCredential) (*models.DeviceCredential, error)
	Update(ctx context.Context, id int64, patch DeviceCredentialPatch) (*models.DeviceCredential, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page Pagination) ([]*models.DeviceCredential, error)
	Count(ctx context.Context) (int64, error)
}

// DeviceCredentialPatch carries the mutable fields of a rotation update;
// nil fields are left unchanged.
type DeviceCredentialPatch struct {
	TokenHash   *string
	TokenLookup *string
	Name        *string
	Labels      *[]string
	Notes       *string
	ExpiresAt   **time.Time
}

// PgDeviceCredentialStore is the Postgres-backed DeviceCredentialStore.
type PgDeviceCredentialStore struct {
	pool *pgxpool.Pool
}

func NewPgDeviceCredentialStore(pool *pgxpool.Pool) *PgDeviceCredentialStore {
	return &PgDeviceCredentialStore{pool: pool}
}

const deviceCredentialColumns = `id, tenant_id, device_id, token_hash, token_lookup, name, labels, notes, expires_at, created_at`

func scanDeviceCredential(row pgx.Row) (*models.DeviceCredential, error) {
	var c models.DeviceCredential
	var labels []string
	var notes *string
	var createdAt time.Time

	if err := row.Scan(
		&c.ID, &c.TenantID, &c.DeviceID, &c.TokenHash, &c.TokenLookup,
		&c.Name, &labels, &notes, &c.ExpiresAt, &createdAt,
	); err != nil {
		return nil, err
	}

	c.Labels = labels
	if notes != nil {
		c.Notes = *notes
	}
	c.CreatedAt = createdAt
	return &c, nil
}

func (s *PgDeviceCredentialStore) FindByTokenLookup(ctx context.Context, lookup string) (*models.DeviceCredential, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceCredentialColumns+` FROM device_credentials WHERE token_lookup = $1`,
		lookup,
	)
	c, err := scanDeviceCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query device credential by token lookup: %w", err)
	}
	return c, nil
}

func (s *PgDeviceCredentialStore) FindByDeviceID(ctx context.Context, deviceID string) (*models.DeviceCredential, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceCredentialColumns+` FROM device_credentials WHERE device_id = $1`,
		deviceID,
	)
	c, err := scanDeviceCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query device credential by device id: %w", err)
	}
	return c, nil
}

func (s *PgDeviceCredentialStore) Create(ctx context.Context, c *models.DeviceCredential) (*models.DeviceCredential, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO device_credentials
		   (tenant_id, device_id, token_hash, token_lookup, name, labels, notes, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+deviceCredentialColumns,
		c.TenantID, c.DeviceID, c.TokenHash, c.TokenLookup, c.Name, c.Labels, nullableString(c.Notes), c.ExpiresAt,
	)
	created, err := scanDeviceCredential(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert device credential: %w", err)
	}
	return created, nil
}

func (s *PgDeviceCredentialStore) Update(ctx context.Context, id int64, patch DeviceCredentialPatch) (*models.DeviceCredential, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE device_credentials SET
		   token_hash   = COALESCE($2, token_hash),
		   token_lookup = COALESCE($3, token_lookup),
		   name         = COALESCE($4, name),
		   labels       = COALESCE($5, labels),
		   notes        = COALESCE($6, notes),
		   expires_at   = CASE WHEN $7::boolean THEN $8 ELSE expires_at END
		 WHERE id = $1
		 RETURNING `+deviceCredentialColumns,
		id, patch.TokenHash, patch.TokenLookup, patch.Name, patch.Labels, patch.Notes,
		patch.ExpiresAt != nil, expiresAtValue(patch.ExpiresAt),
	)
	updated, err := scanDeviceCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to update device credential: %w", err)
	}
	return updated, nil
}

func (s *PgDeviceCredentialStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM device_credentials WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete device credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgDeviceCredentialStore) List(ctx context.Context, page Pagination) ([]*models.DeviceCredential, error) {
	page = page.Normalize()

	rows, err := s.pool.Query(ctx,
		`SELECT `+deviceCredentialColumns+` FROM device_credentials
		 ORDER BY id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list device credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.DeviceCredential
	for rows.Next() {
		c, err := scanDeviceCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device credential row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device credential rows: %w", err)
	}
	return out, nil
}

func (s *PgDeviceCredentialStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM device_credentials").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count device credentials: %w", err)
	}
	return count, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func expiresAtValue(patch **time.Time) *time.Time {
	if patch == nil {
		return nil
	}
	return *patch
}
