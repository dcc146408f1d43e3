package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// GetEntity implements [knowledge.EntityStore]. The name lookup is
// case-insensitive; the stored canonical casing is returned.
func (s *Store) GetEntity(ctx context.Context, campaignID string, kind knowledge.Kind, name string) (*knowledge.EntityRecord, error) {
	const q = `
		SELECT campaign_id, kind, name, short_id, description, manual_override,
		       dirty, last_synced_event_id, created_at, updated_at
		FROM   entity_records
		WHERE  campaign_id = $1 AND kind = $2 AND lower(name) = lower($3)`

	rec := &knowledge.EntityRecord{}
	err := s.pool.QueryRow(ctx, q, campaignID, string(kind), name).Scan(
		&rec.CampaignID,
		&rec.Kind,
		&rec.Name,
		&rec.ShortID,
		&rec.Description,
		&rec.ManualOverride,
		&rec.Dirty,
		&rec.LastSyncedEventID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get entity: %w", err)
	}
	return rec, nil
}

// CreateEntity implements [knowledge.EntityStore].
func (s *Store) CreateEntity(ctx context.Context, rec knowledge.EntityRecord) error {
	const q = `
		INSERT INTO entity_records
		    (campaign_id, kind, name, short_id, description, manual_override,
		     dirty, last_synced_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		rec.CampaignID,
		string(rec.Kind),
		rec.Name,
		rec.ShortID,
		rec.Description,
		rec.ManualOverride,
		rec.Dirty,
		rec.LastSyncedEventID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: create entity %q: %w", rec.Name, err)
	}
	return nil
}

// UpdateDescription implements [knowledge.EntityStore]. The dirty flag is
// deliberately untouched: description durability and RAG refresh are separate
// steps, and the flag only clears once the refresh has been attempted.
func (s *Store) UpdateDescription(ctx context.Context, campaignID string, kind knowledge.Kind, name, description string, lastEventID int64) error {
	const q = `
		UPDATE entity_records
		SET    description = $4, last_synced_event_id = $5, updated_at = now()
		WHERE  campaign_id = $1 AND kind = $2 AND lower(name) = lower($3)`

	tag, err := s.pool.Exec(ctx, q, campaignID, string(kind), name, description, lastEventID)
	if err != nil {
		return fmt.Errorf("postgres store: update description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: update description %q: %w", name, knowledge.ErrNotFound)
	}
	return nil
}

// MergeDescription implements [knowledge.EntityStore].
func (s *Store) MergeDescription(ctx context.Context, campaignID string, kind knowledge.Kind, name, description string) error {
	const q = `
		UPDATE entity_records
		SET    description = $4, dirty = TRUE, updated_at = now()
		WHERE  campaign_id = $1 AND kind = $2 AND lower(name) = lower($3)`

	tag, err := s.pool.Exec(ctx, q, campaignID, string(kind), name, description)
	if err != nil {
		return fmt.Errorf("postgres store: merge description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: merge description %q: %w", name, knowledge.ErrNotFound)
	}
	return nil
}

// SetDirty implements [knowledge.EntityStore].
func (s *Store) SetDirty(ctx context.Context, campaignID string, kind knowledge.Kind, name string, dirty bool) error {
	const q = `
		UPDATE entity_records
		SET    dirty = $4, updated_at = now()
		WHERE  campaign_id = $1 AND kind = $2 AND lower(name) = lower($3)`

	if _, err := s.pool.Exec(ctx, q, campaignID, string(kind), name, dirty); err != nil {
		return fmt.Errorf("postgres store: set dirty: %w", err)
	}
	return nil
}

// ListDirty implements [knowledge.EntityStore].
func (s *Store) ListDirty(ctx context.Context, campaignID string, kind knowledge.Kind) ([]string, error) {
	const q = `
		SELECT name FROM entity_records
		WHERE  campaign_id = $1 AND kind = $2 AND dirty
		ORDER  BY name`

	rows, err := s.pool.Query(ctx, q, campaignID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("postgres store: list dirty: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan dirty names: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// ListNames implements [knowledge.EntityStore]. An empty kind lists names
// across every kind.
func (s *Store) ListNames(ctx context.Context, campaignID string, kind knowledge.Kind) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if kind == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT name FROM entity_records WHERE campaign_id = $1 ORDER BY name`,
			campaignID)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT name FROM entity_records WHERE campaign_id = $1 AND kind = $2 ORDER BY name`,
			campaignID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: list names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan names: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
