package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyService is the registry of client companies. Identity resolution
// (auth, roles) happens upstream; the core only needs the company row, its
// timezone for day windows, and the active flag for batch generation.
type CompanyService interface {
	CreateCompany(ctx context.Context, code, name, timezone string) (*Company, error)
	GetCompany(ctx context.Context, code string) (*Company, error)
	GetActiveCompanies(ctx context.Context) ([]Company, error)
	SetCompanyActive(ctx context.Context, code string, active bool) (*Company, error)
}

type companyService struct {
	pool *pgxpool.Pool
}

func NewCompanyService(pool *pgxpool.Pool) CompanyService {
	return &companyService{pool: pool}
}

func (s *companyService) CreateCompany(ctx context.Context, code, name, timezone string) (*Company, error) {
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: company code and name are required", ErrInvalidInput)
	}
	if timezone == "" {
		timezone = "Europe/Istanbul"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
	}

	var c Company
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (company_code, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_code) DO NOTHING
		RETURNING id, company_code, name, timezone, is_active, created_at
	`, code, name, timezone).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.Timezone, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: company code %s already exists", ErrConflict, code)
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return &c, nil
}

func (s *companyService) GetCompany(ctx context.Context, code string) (*Company, error) {
	var c Company
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_code, name, timezone, is_active, created_at
		FROM companies
		WHERE company_code = $1
	`, code).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.Timezone, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to fetch company %s: %w", code, err)
	}
	return &c, nil
}

func (s *companyService) GetActiveCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_code, name, timezone, is_active, created_at
		FROM companies
		WHERE is_active = true
		ORDER BY company_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.CompanyCode, &c.Name, &c.Timezone, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read companies: %w", err)
	}
	return companies, nil
}

func (s *companyService) SetCompanyActive(ctx context.Context, code string, active bool) (*Company, error) {
	var c Company
	err := s.pool.QueryRow(ctx, `
		UPDATE companies
		SET is_active = $1
		WHERE company_code = $2
		RETURNING id, company_code, name, timezone, is_active, created_at
	`, active, code).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.Timezone, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to update company %s: %w", code, err)
	}
	return &c, nil
}

// resolveCompanyID looks up the internal company ID from a company code.
// Shared by the ledger, reconciliation and payment services.
func resolveCompanyID(ctx context.Context, q pgxQuerier, companyCode string) (int, error) {
	var id int
	err := q.QueryRow(ctx, "SELECT id FROM companies WHERE company_code = $1", companyCode).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: company %s", ErrNotFound, companyCode)
		}
		return 0, fmt.Errorf("failed to resolve company %s: %w", companyCode, err)
	}
	return id, nil
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
