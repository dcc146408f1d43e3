package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// GetSession implements [knowledge.SessionSource]. A session without a
// campaign association is reported as absent: ingestion treats it as a no-op.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*knowledge.Session, error) {
	const q = `SELECT id, campaign_id, started_at FROM sessions WHERE id = $1`

	sess := &knowledge.Session{}
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&sess.ID, &sess.CampaignID, &sess.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get session: %w", err)
	}
	if sess.CampaignID == "" {
		return nil, nil
	}
	return sess, nil
}

// ListRecordings implements [knowledge.SessionSource].
func (s *Store) ListRecordings(ctx context.Context, sessionID string) ([]knowledge.Recording, error) {
	const q = `
		SELECT id, session_id, started_at, macro_location, micro_location, tagged_npcs
		FROM   recordings
		WHERE  session_id = $1
		ORDER  BY started_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list recordings: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Recording, error) {
		var r knowledge.Recording
		err := row.Scan(&r.ID, &r.SessionID, &r.StartedAt,
			&r.MacroLocation, &r.MicroLocation, &r.TaggedNPCs)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan recordings: %w", err)
	}
	if recs == nil {
		recs = []knowledge.Recording{}
	}
	return recs, nil
}

// ListSegments implements [knowledge.SessionSource].
func (s *Store) ListSegments(ctx context.Context, recordingID string) ([]knowledge.Segment, error) {
	const q = `
		SELECT recording_id, offset_ns, speaker_name, text
		FROM   transcript_segments
		WHERE  recording_id = $1
		ORDER  BY offset_ns, id`

	rows, err := s.pool.Query(ctx, q, recordingID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list segments: %w", err)
	}

	segs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Segment, error) {
		var (
			seg      knowledge.Segment
			offsetNS int64
		)
		err := row.Scan(&seg.RecordingID, &offsetNS, &seg.SpeakerName, &seg.Text)
		seg.Offset = time.Duration(offsetNS)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan segments: %w", err)
	}
	if segs == nil {
		segs = []knowledge.Segment{}
	}
	return segs, nil
}
