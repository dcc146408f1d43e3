// Package ingest turns finished session transcripts into embedded knowledge
// fragments.
//
// Ingestion reconstructs a chronological dialogue from per-recording
// transcript segments, chunks it with a sliding window, tags each chunk with
// provenance (timestamp, scene locations, mentioned NPCs), embeds every chunk
// under every configured embedding model, and writes one fragment per
// (chunk, model). Provider failures are local: a failed embedding yields no
// fragment for that model on that chunk and never aborts the rest of the
// session.
package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// dialogueLine is one utterance placed on the session's absolute timeline,
// carrying the provenance tags of the recording it came from.
type dialogueLine struct {
	// Timestamp is the absolute utterance start time.
	Timestamp time.Time

	// Offset is the utterance start relative to the session start. Rendered
	// as the [mm:ss] marker in the blob.
	Offset time.Duration

	// Rendered is the line as it appears in the transcript blob.
	Rendered string

	MacroLocation string
	MicroLocation string
	TaggedNPCs    []string
}

// buildDialogue merges the recordings' segments into a single chronological
// line list. Segment offsets are relative to their recording; here they are
// rebased onto the session timeline.
func buildDialogue(sess *knowledge.Session, recordings []knowledge.Recording, segments map[string][]knowledge.Segment) []dialogueLine {
	var lines []dialogueLine
	for _, rec := range recordings {
		base := rec.StartedAt.Sub(sess.StartedAt)
		for _, seg := range segments[rec.ID] {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			offset := base + seg.Offset
			lines = append(lines, dialogueLine{
				Timestamp:     rec.StartedAt.Add(seg.Offset),
				Offset:        offset,
				Rendered:      renderLine(offset, seg.SpeakerName, text),
				MacroLocation: rec.MacroLocation,
				MicroLocation: rec.MicroLocation,
				TaggedNPCs:    rec.TaggedNPCs,
			})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Timestamp.Before(lines[j].Timestamp)
	})
	return lines
}

// renderLine formats one utterance for the transcript blob. The leading
// [mm:ss] marker is what chunk timestamp derivation looks for later.
func renderLine(offset time.Duration, speaker, text string) string {
	if offset < 0 {
		offset = 0
	}
	mins := int(offset.Minutes())
	secs := int(offset.Seconds()) % 60
	if speaker == "" {
		return fmt.Sprintf("[%02d:%02d] %s", mins, secs, text)
	}
	return fmt.Sprintf("[%02d:%02d] %s: %s", mins, secs, speaker, text)
}

// renderBlob concatenates the rendered lines into the chunkable transcript
// blob, newline separated.
func renderBlob(lines []dialogueLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Rendered
	}
	return strings.Join(parts, "\n")
}
