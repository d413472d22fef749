package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.QualityRule, error) {
	query :=
		`SELECT id, rule_name, rule_type, (rule_value->>'value')::float8, COALESCE(rule_value->>'description', ''), is_active, updated_at
		 FROM phrase_quality_rules
		 WHERE rule_name = $1
		 `

	rule := &models.QualityRule{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&rule.ID, &rule.RuleName, &rule.RuleType, &rule.Value,
		&rule.Description, &rule.IsActive, &rule.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rule, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.QualityRule, error) {
	query :=
		`SELECT id, rule_name, rule_type, (rule_value->>'value')::float8, COALESCE(rule_value->>'description', ''), is_active, updated_at
		 FROM phrase_quality_rules
		 ORDER BY rule_name
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.QualityRule
	for rows.Next() {
		rule := &models.QualityRule{}
		if err := rows.Scan(&rule.ID, &rule.RuleName, &rule.RuleType, &rule.Value,
			&rule.Description, &rule.IsActive, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateValue(ctx context.Context, name string, value float64) error {
	query :=
		`UPDATE phrase_quality_rules
		 SET rule_value = jsonb_set(rule_value, '{value}', to_jsonb($2::float8)), updated_at = now()
		 WHERE rule_name = $1
		 `

	res, err := r.db.ExecContext(ctx, query, name, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) Toggle(ctx context.Context, name string, active bool) error {
	query :=
		`UPDATE phrase_quality_rules
		 SET is_active = $2, updated_at = now()
		 WHERE rule_name = $1
		 `

	res, err := r.db.ExecContext(ctx, query, name, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}
