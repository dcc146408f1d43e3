package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// InsertFragment implements [knowledge.FragmentStore].
func (s *Store) InsertFragment(ctx context.Context, f knowledge.Fragment) error {
	const q = `
		INSERT INTO fragments
		    (id, campaign_id, session_id, content, embedding, embedding_model,
		     created_at, start_timestamp, macro_location, micro_location, entity_tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	tags := f.EntityTags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx, q,
		f.ID,
		f.CampaignID,
		f.SessionID,
		f.Content,
		pgvector.NewVector(f.Embedding),
		f.EmbeddingModel,
		f.CreatedAt,
		f.StartTimestamp,
		f.MacroLocation,
		f.MicroLocation,
		tags,
	)
	if err != nil {
		return fmt.Errorf("postgres store: insert fragment: %w", err)
	}
	return nil
}

// ListFragments implements [knowledge.FragmentStore]. Fragments are returned
// ordered by start_timestamp ascending; that ordering is the address space
// used by temporal neighbour expansion, so it must be stable.
func (s *Store) ListFragments(ctx context.Context, campaignID, model string) ([]knowledge.Fragment, error) {
	const q = `
		SELECT id, campaign_id, session_id, content, embedding, embedding_model,
		       created_at, start_timestamp, macro_location, micro_location, entity_tags
		FROM   fragments
		WHERE  campaign_id = $1 AND embedding_model = $2
		ORDER  BY start_timestamp, id`

	rows, err := s.pool.Query(ctx, q, campaignID, model)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list fragments: %w", err)
	}

	frags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Fragment, error) {
		var (
			f   knowledge.Fragment
			vec pgvector.Vector
		)
		if err := row.Scan(
			&f.ID,
			&f.CampaignID,
			&f.SessionID,
			&f.Content,
			&vec,
			&f.EmbeddingModel,
			&f.CreatedAt,
			&f.StartTimestamp,
			&f.MacroLocation,
			&f.MicroLocation,
			&f.EntityTags,
		); err != nil {
			return knowledge.Fragment{}, err
		}
		f.Embedding = vec.Slice()
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan fragments: %w", err)
	}
	if frags == nil {
		frags = []knowledge.Fragment{}
	}
	return frags, nil
}

// DeleteSessionFragments implements [knowledge.FragmentStore].
func (s *Store) DeleteSessionFragments(ctx context.Context, sessionID, model string) error {
	const q = `DELETE FROM fragments WHERE session_id = $1 AND embedding_model = $2`
	if _, err := s.pool.Exec(ctx, q, sessionID, model); err != nil {
		return fmt.Errorf("postgres store: delete session fragments: %w", err)
	}
	return nil
}

// DeleteEntityFragments implements [knowledge.FragmentStore]. Only canonical
// summary fragments (empty session_id) are touched; ingested dialogue
// fragments that merely mention the entity stay in place.
func (s *Store) DeleteEntityFragments(ctx context.Context, campaignID, name string) (int64, error) {
	const q = `
		DELETE FROM fragments
		WHERE  campaign_id = $1
		  AND  session_id = ''
		  AND  entity_tags @> ARRAY[$2]::text[]`

	tag, err := s.pool.Exec(ctx, q, campaignID, name)
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete entity fragments: %w", err)
	}
	return tag.RowsAffected(), nil
}
