package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyRevoked is returned when revoking a revoked license.
	ErrAlreadyRevoked = errors.New("storage: license already revoked")
	// ErrDuplicate is returned on unique-constraint conflicts.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// Open connects to Postgres via pgx and wraps the connection in bun.
func Open(dsn string) (*bun.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}
	sqldb := stdlib.OpenDB(*cfg)
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Store provides license, customer, audit, and API-key persistence.
type Store struct {
	db *bun.DB
}

// New wraps a bun DB handle.
func New(db *bun.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for health checks and migrations.
func (s *Store) DB() *bun.DB { return s.db }

// ----- customers -----

func (s *Store) CreateCustomer(ctx context.Context, c *Customer) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if _, err := s.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	c := new(Customer)
	err := s.db.NewSelect().Model(c).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, activeOnly bool, limit, offset int) ([]Customer, error) {
	var out []Customer
	q := s.db.NewSelect().Model(&out).Order("c.created_at DESC").Limit(limit).Offset(offset)
	if activeOnly {
		q = q.Where("c.is_active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

// DeactivateCustomer soft-deletes a customer. The row stays because
// licenses reference it; issuance refuses inactive customers.
func (s *Store) DeactivateCustomer(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().Model((*Customer)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("c.id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *Customer) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(c).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- licenses -----

func (s *Store) CreateLicense(ctx context.Context, l *License) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if l.Status == "" {
		l.Status = StatusActive
	}
	if _, err := s.db.NewInsert().Model(l).Exec(ctx); err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *Store) GetLicense(ctx context.Context, id uuid.UUID) (*License, error) {
	l := new(License)
	err := s.db.NewSelect().Model(l).Relation("Customer").Where("l.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select license: %w", err)
	}
	return l, nil
}

// LicenseFilter narrows ListLicenses. Zero values mean "any".
type LicenseFilter struct {
	CustomerID  string
	ModuleName  string
	LicenseType string
	Status      LicenseStatus
	Page        int
	PageSize    int
}

// ListLicenses returns one page of licenses plus the total match count.
func (s *Store) ListLicenses(ctx context.Context, f LicenseFilter) ([]License, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 50
	}

	var out []License
	q := s.db.NewSelect().Model(&out).Relation("Customer")
	if f.CustomerID != "" {
		q = q.Where("l.customer_id = ?", f.CustomerID)
	}
	if f.ModuleName != "" {
		q = q.Where("l.module_name = ?", f.ModuleName)
	}
	if f.LicenseType != "" {
		q = q.Where("l.license_type = ?", f.LicenseType)
	}
	if f.Status != "" {
		q = q.Where("l.status = ?", f.Status)
	}

	total, err := q.Order("l.created_at DESC").
		Limit(f.PageSize).
		Offset((f.Page - 1) * f.PageSize).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list licenses: %w", err)
	}
	return out, total, nil
}

// RevokeLicense flips a license to revoked. Revoking twice is an error so
// boundary layers can report the conflict.
func (s *Store) RevokeLicense(ctx context.Context, id uuid.UUID, reason string) (*License, error) {
	l, err := s.GetLicense(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == StatusRevoked {
		return nil, ErrAlreadyRevoked
	}

	now := time.Now().UTC()
	l.Status = StatusRevoked
	l.RevokedAt = &now
	l.RevokedReason = reason
	l.UpdatedAt = now

	_, err = s.db.NewUpdate().Model(l).
		Column("status", "revoked_at", "revoked_reason", "updated_at").
		WherePK().
		Where("l.status <> ?", StatusRevoked).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("revoke license: %w", err)
	}
	return l, nil
}

// MarkExpired transitions every active license whose expiry has passed and
// returns the ids it touched. Run periodically by the expiry sweep job.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.NewUpdate().Model((*License)(nil)).
		Set("status = ?", StatusExpired).
		Set("updated_at = ?", now.UTC()).
		Where("l.status = ?", StatusActive).
		Where("l.expires_at IS NOT NULL").
		Where("l.expires_at <= ?", now.UTC()).
		Returning("l.id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("mark expired: %w", err)
	}
	return ids, nil
}

// RevokedLicenseIDs lists every revoked license id, for syncing into the
// revocation gate.
func (s *Store) RevokedLicenseIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*License)(nil)).
		Column("l.id").
		Where("l.status = ?", StatusRevoked).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("revoked license ids: %w", err)
	}
	return ids, nil
}

// ----- audit -----

func (s *Store) RecordEvent(ctx context.Context, e *AuditLog) error {
	e.CreatedAt = time.Now().UTC()
	if _, err := s.db.NewInsert().Model(e).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var out []AuditLog
	err := s.db.NewSelect().Model(&out).
		Order("al.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return out, nil
}

// ----- api keys -----

func (s *Store) CreateAPIKey(ctx context.Context, k *APIKey) error {
	k.CreatedAt = time.Now().UTC()
	if _, err := s.db.NewInsert().Model(k).Exec(ctx); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// ActiveAPIKeys returns every currently usable credential. The auth layer
// compares presented keys against these hashes.
func (s *Store) ActiveAPIKeys(ctx context.Context) ([]APIKey, error) {
	var out []APIKey
	err := s.db.NewSelect().Model(&out).
		Where("ak.is_active").
		Where("ak.expires_at IS NULL OR ak.expires_at > ?", time.Now().UTC()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("active api keys: %w", err)
	}
	return out, nil
}

// TouchAPIKey records a successful use. Best-effort.
func (s *Store) TouchAPIKey(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().Model((*APIKey)(nil)).
		Set("last_used_at = ?", now).
		Set("usage_count = usage_count + 1").
		Where("ak.id = ?", id).
		Exec(ctx)
	return err
}

// ----- stats -----

// Stats is the admin dashboard summary.
type Stats struct {
	Customers struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"customers"`
	Licenses struct {
		Total   int            `json:"total"`
		Active  int            `json:"active"`
		Revoked int            `json:"revoked"`
		Expired int            `json:"expired"`
		ByType  map[string]int `json:"by_type"`
	} `json:"licenses"`
	AuditLogs struct {
		Total int `json:"total"`
	} `json:"audit_logs"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{}
	out.Licenses.ByType = make(map[string]int)

	var err error
	if out.Customers.Total, err = s.db.NewSelect().Model((*Customer)(nil)).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if out.Customers.Active, err = s.db.NewSelect().Model((*Customer)(nil)).Where("c.is_active").Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if out.Licenses.Total, err = s.db.NewSelect().Model((*License)(nil)).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if out.Licenses.Active, err = s.db.NewSelect().Model((*License)(nil)).Where("l.status = ?", StatusActive).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if out.Licenses.Revoked, err = s.db.NewSelect().Model((*License)(nil)).Where("l.status = ?", StatusRevoked).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if out.Licenses.Expired, err = s.db.NewSelect().Model((*License)(nil)).Where("l.status = ?", StatusExpired).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	var rows []struct {
		LicenseType string `bun:"license_type"`
		Count       int    `bun:"count"`
	}
	err = s.db.NewSelect().Model((*License)(nil)).
		ColumnExpr("l.license_type, count(*) AS count").
		Group("l.license_type").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	for _, r := range rows {
		out.Licenses.ByType[r.LicenseType] = r.Count
	}

	if out.AuditLogs.Total, err = s.db.NewSelect().Model((*AuditLog)(nil)).Count(ctx); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}
