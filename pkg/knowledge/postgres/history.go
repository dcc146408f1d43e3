package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// ListEvents implements [knowledge.HistoryStore].
func (s *Store) ListEvents(ctx context.Context, campaignID string, kind knowledge.Kind, name string) ([]knowledge.Event, error) {
	const q = `
		SELECT id, campaign_id, kind, entity_name, session_id, event_type, description, timestamp
		FROM   entity_events
		WHERE  campaign_id = $1 AND kind = $2 AND lower(entity_name) = lower($3)
		ORDER  BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, campaignID, string(kind), name)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Event, error) {
		var ev knowledge.Event
		err := row.Scan(
			&ev.ID,
			&ev.CampaignID,
			&ev.Kind,
			&ev.EntityName,
			&ev.SessionID,
			&ev.EventType,
			&ev.Description,
			&ev.Timestamp,
		)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan events: %w", err)
	}
	if events == nil {
		events = []knowledge.Event{}
	}
	return events, nil
}

// AppendEvent implements [knowledge.HistoryStore]. The event insert and the
// dirty-flag write happen in one transaction: a history write that does not
// stale the cached description would silently break lazy sync.
func (s *Store) AppendEvent(ctx context.Context, ev knowledge.Event) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append event: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO entity_events
		    (campaign_id, kind, entity_name, session_id, event_type, description, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		ev.CampaignID, string(ev.Kind), ev.EntityName, ev.SessionID,
		ev.EventType, ev.Description, ev.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append event: insert: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE entity_records
		SET    dirty = TRUE, updated_at = now()
		WHERE  campaign_id = $1 AND kind = $2 AND lower(name) = lower($3)`,
		ev.CampaignID, string(ev.Kind), ev.EntityName,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append event: mark dirty: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres store: append event: commit: %w", err)
	}
	return id, nil
}
