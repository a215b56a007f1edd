package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleService is the store for pricing rules. Rules referenced by historical
// orders are never deleted physically; deactivation is the only removal.
type RuleService interface {
	CreateRule(ctx context.Context, name string, ruleType RuleType, parameters json.RawMessage, priority int) (*PricingRule, error)
	UpdateRule(ctx context.Context, id int, name string, parameters json.RawMessage, priority int) (*PricingRule, error)
	SetRuleActive(ctx context.Context, id int, active bool) (*PricingRule, error)
	GetRule(ctx context.Context, id int) (*PricingRule, error)
	// GetRules returns every rule, active or not, ordered by priority ASC.
	GetRules(ctx context.Context) ([]PricingRule, error)
	// ActiveRules returns one consistent point-in-time snapshot of the
	// active rule set. A single calculation never observes two different
	// snapshots.
	ActiveRules(ctx context.Context) ([]PricingRule, error)
}

type ruleService struct {
	pool *pgxpool.Pool

	mu       sync.RWMutex
	snapshot []PricingRule // active rules ordered by priority; nil until first load
}

func NewRuleService(pool *pgxpool.Pool) RuleService {
	return &ruleService{pool: pool}
}

var knownRuleTypes = map[RuleType]bool{
	RuleBaseFee:      true,
	RuleDistance:     true,
	RulePackageType:  true,
	RuleUrgency:      true,
	RuleZone:         true,
	RuleTimeSlot:     true,
	RuleMinimumOrder: true,
}

func validateRuleInput(name string, ruleType RuleType, parameters json.RawMessage) error {
	if name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}
	if ruleType != "" && !knownRuleTypes[ruleType] {
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, ruleType)
	}
	if len(parameters) > 0 && !json.Valid(parameters) {
		return fmt.Errorf("%w: rule parameters must be valid JSON", ErrInvalidInput)
	}
	return nil
}

func (s *ruleService) CreateRule(ctx context.Context, name string, ruleType RuleType, parameters json.RawMessage, priority int) (*PricingRule, error) {
	if err := validateRuleInput(name, ruleType, parameters); err != nil {
		return nil, err
	}
	if ruleType == "" {
		return nil, fmt.Errorf("%w: rule type is required", ErrInvalidInput)
	}
	if len(parameters) == 0 {
		parameters = json.RawMessage("{}")
	}

	var r PricingRule
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pricing_rules (name, rule_type, parameters, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, rule_type, parameters, priority, is_active, created_at, updated_at
	`, name, ruleType, parameters, priority).Scan(
		&r.ID, &r.Name, &r.Type, &r.Parameters, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pricing rule: %w", err)
	}

	if err := s.reloadSnapshot(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ruleService) UpdateRule(ctx context.Context, id int, name string, parameters json.RawMessage, priority int) (*PricingRule, error) {
	if err := validateRuleInput(name, "", parameters); err != nil {
		return nil, err
	}
	if len(parameters) == 0 {
		parameters = json.RawMessage("{}")
	}

	var r PricingRule
	err := s.pool.QueryRow(ctx, `
		UPDATE pricing_rules
		SET name = $1, parameters = $2, priority = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, rule_type, parameters, priority, is_active, created_at, updated_at
	`, name, parameters, priority, id).Scan(
		&r.ID, &r.Name, &r.Type, &r.Parameters, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: pricing rule %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update pricing rule %d: %w", id, err)
	}

	if err := s.reloadSnapshot(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ruleService) SetRuleActive(ctx context.Context, id int, active bool) (*PricingRule, error) {
	var r PricingRule
	err := s.pool.QueryRow(ctx, `
		UPDATE pricing_rules
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, name, rule_type, parameters, priority, is_active, created_at, updated_at
	`, active, id).Scan(
		&r.ID, &r.Name, &r.Type, &r.Parameters, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: pricing rule %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to set pricing rule %d active=%t: %w", id, active, err)
	}

	if err := s.reloadSnapshot(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ruleService) GetRule(ctx context.Context, id int) (*PricingRule, error) {
	var r PricingRule
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, rule_type, parameters, priority, is_active, created_at, updated_at
		FROM pricing_rules
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.Type, &r.Parameters, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: pricing rule %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch pricing rule %d: %w", id, err)
	}
	return &r, nil
}

func (s *ruleService) GetRules(ctx context.Context) ([]PricingRule, error) {
	return s.queryRules(ctx, false)
}

func (s *ruleService) ActiveRules(ctx context.Context) ([]PricingRule, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil {
		out := make([]PricingRule, len(snap))
		copy(out, snap)
		return out, nil
	}

	if err := s.reloadSnapshot(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PricingRule, len(s.snapshot))
	copy(out, s.snapshot)
	return out, nil
}

// reloadSnapshot replaces the cached active rule set with a fresh read. It
// runs synchronously inside every mutating call so a calculation never mixes
// rules from two points in time.
func (s *ruleService) reloadSnapshot(ctx context.Context) error {
	rules, err := s.queryRules(ctx, true)
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []PricingRule{}
	}
	s.mu.Lock()
	s.snapshot = rules
	s.mu.Unlock()
	return nil
}

func (s *ruleService) queryRules(ctx context.Context, activeOnly bool) ([]PricingRule, error) {
	query := `
		SELECT id, name, rule_type, parameters, priority, is_active, created_at, updated_at
		FROM pricing_rules
	`
	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY priority ASC, id ASC"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []PricingRule
	for rows.Next() {
		var r PricingRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.Parameters, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pricing rules: %w", err)
	}
	return rules, nil
}
