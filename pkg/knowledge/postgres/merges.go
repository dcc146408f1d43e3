package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// PutMerge implements [knowledge.MergeStore].
func (s *Store) PutMerge(ctx context.Context, m knowledge.PendingMerge) error {
	const q = `
		INSERT INTO pending_merges
		    (prompt_message_id, campaign_id, kind, detected_name, suggested_name,
		     new_description, role, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (prompt_message_id) DO UPDATE SET
		    state = EXCLUDED.state`

	_, err := s.pool.Exec(ctx, q,
		m.PromptMessageID,
		m.CampaignID,
		string(m.Kind),
		m.DetectedName,
		m.SuggestedName,
		m.NewDescription,
		m.Role,
		string(m.State),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: put merge: %w", err)
	}
	return nil
}

// GetMerge implements [knowledge.MergeStore].
func (s *Store) GetMerge(ctx context.Context, promptMessageID string) (*knowledge.PendingMerge, error) {
	const q = `
		SELECT prompt_message_id, campaign_id, kind, detected_name, suggested_name,
		       new_description, role, state, created_at
		FROM   pending_merges
		WHERE  prompt_message_id = $1`

	m := &knowledge.PendingMerge{}
	err := s.pool.QueryRow(ctx, q, promptMessageID).Scan(
		&m.PromptMessageID,
		&m.CampaignID,
		&m.Kind,
		&m.DetectedName,
		&m.SuggestedName,
		&m.NewDescription,
		&m.Role,
		&m.State,
		&m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get merge: %w", err)
	}
	return m, nil
}

// DeleteMerge implements [knowledge.MergeStore].
func (s *Store) DeleteMerge(ctx context.Context, promptMessageID string) error {
	const q = `DELETE FROM pending_merges WHERE prompt_message_id = $1`
	if _, err := s.pool.Exec(ctx, q, promptMessageID); err != nil {
		return fmt.Errorf("postgres store: delete merge: %w", err)
	}
	return nil
}

// ListPending implements [knowledge.MergeStore].
func (s *Store) ListPending(ctx context.Context) ([]knowledge.PendingMerge, error) {
	const q = `
		SELECT prompt_message_id, campaign_id, kind, detected_name, suggested_name,
		       new_description, role, state, created_at
		FROM   pending_merges
		WHERE  state = 'PROPOSED'
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list pending merges: %w", err)
	}

	merges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.PendingMerge, error) {
		var m knowledge.PendingMerge
		err := row.Scan(
			&m.PromptMessageID,
			&m.CampaignID,
			&m.Kind,
			&m.DetectedName,
			&m.SuggestedName,
			&m.NewDescription,
			&m.Role,
			&m.State,
			&m.CreatedAt,
		)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan pending merges: %w", err)
	}
	if merges == nil {
		merges = []knowledge.PendingMerge{}
	}
	return merges, nil
}
