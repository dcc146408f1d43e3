// Package transcript corrects mis-transcribed entity names in session
// transcripts before they are chunked and embedded. Speech-to-text renders
// unfamiliar fantasy names inconsistently, and both retrieval and entity
// tagging depend on the canonical spelling appearing in the indexed text.
//
// Correction is phonetic-first: candidate phrases are matched against the
// campaign roster using Double Metaphone code overlap, then ranked by
// Jaro-Winkler similarity. When a chat model is attached, borderline
// replacements are verified before they are applied; a rejected or unverifiable
// replacement leaves the original text untouched.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/lorevault/lorevault/pkg/provider/llm"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultVerifyBelow       = 0.80
)

// timeMarkerRe matches a whole [mm:ss] token rendered into transcript lines.
var timeMarkerRe = regexp.MustCompile(`^\[\d{1,3}:\d{2}\]$`)

const verifySystemPrompt = "You review automatic name corrections in a " +
	"tabletop RPG session transcript. Answer with exactly YES or NO."

// Correction records one applied replacement.
type Correction struct {
	// Original is the transcribed phrase, without surrounding punctuation.
	Original string

	// Corrected is the canonical roster name that replaced it.
	Corrected string

	// Confidence is the Jaro-Winkler similarity that ranked the match.
	Confidence float64
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap exists and matching falls back to pure string similarity.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// WithVerifier attaches a chat model that reviews borderline replacements.
func WithVerifier(provider llm.Provider) Option {
	return func(c *Corrector) {
		c.verifier = provider
	}
}

// WithVerifyBelow sets the confidence below which a replacement is submitted
// to the verifier (when one is attached). Default: 0.80.
func WithVerifyBelow(threshold float64) Option {
	return func(c *Corrector) {
		c.verifyBelow = threshold
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Corrector) {
		c.log = log
	}
}

// Corrector aligns transcript phrases with a campaign's canonical entity
// names. It is read-only after construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	verifyBelow       float64
	verifier          llm.Provider
	log               *slog.Logger
}

// New returns a [Corrector] configured with the supplied options.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		verifyBelow:       defaultVerifyBelow,
		log:               slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// rosterEntry holds the precomputed matching data for one canonical name.
type rosterEntry struct {
	name   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// proposal is a candidate replacement located in the token stream.
type proposal struct {
	start      int
	n          int
	suffix     string
	original   string
	entity     string
	confidence float64
}

// Correct replaces mis-transcribed roster names in text and returns the
// corrected text with the list of applied corrections. Structural tokens
// ([mm:ss] markers and "Speaker:" labels) are never touched. The original
// text is returned unchanged when nothing matches.
func (c *Corrector) Correct(ctx context.Context, text string, roster []string) (string, []Correction, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(roster) == 0 {
		return text, nil, nil
	}

	entries, maxWords := prepareRoster(roster)
	if len(entries) == 0 {
		return text, nil, nil
	}

	proposals := c.scan(tokens, entries, maxWords)
	if len(proposals) == 0 {
		return text, nil, nil
	}

	kept := proposals[:0]
	for _, p := range proposals {
		if c.verifier != nil && p.confidence < c.verifyBelow {
			ok, err := c.verify(ctx, p.original, p.entity)
			if err != nil {
				c.log.Warn("name correction could not be verified, keeping original",
					"original", p.original, "candidate", p.entity, "error", err)
				continue
			}
			if !ok {
				continue
			}
		}
		kept = append(kept, p)
	}

	return apply(tokens, kept)
}

// scan walks the token stream trying n-gram windows against the roster,
// longest window first so multi-word names win over partial matches.
func (c *Corrector) scan(tokens []string, entries []rosterEntry, maxWords int) []proposal {
	var proposals []proposal

	i := 0
	for i < len(tokens) {
		if structural(tokens[i]) {
			i++
			continue
		}

		maxN := maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		advanced := false
		for n := maxN; n >= 1; n-- {
			if spansStructural(tokens[i : i+n]) {
				continue
			}
			core, suffix := splitPunct(strings.Join(tokens[i:i+n], " "))
			if core == "" {
				continue
			}

			entity, conf, ok := c.match(core, entries)
			if !ok {
				continue
			}
			// An exact partial mention ("Leosin" for "Leosin Erantar") is
			// not a mis-transcription; leave it alone.
			if !strings.EqualFold(core, entity) && !exactPartial(core, entity) {
				proposals = append(proposals, proposal{
					start:      i,
					n:          n,
					suffix:     suffix,
					original:   core,
					entity:     entity,
					confidence: conf,
				})
			}
			i += n
			advanced = true
			break
		}
		if !advanced {
			i++
		}
	}
	return proposals
}

// match finds the roster name most similar to phrase. Phonetic candidates
// (Double Metaphone code overlap) are preferred and accepted at the phonetic
// threshold; names without phonetic overlap need the higher fuzzy threshold.
func (c *Corrector) match(phrase string, entries []rosterEntry) (string, float64, bool) {
	phraseLower := strings.ToLower(phrase)
	phraseTokens := strings.Fields(phraseLower)
	phraseCodes := codesFor(phraseTokens)

	var (
		bestName     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, e := range entries {
		// A multi-word window must align token by token, otherwise any
		// window containing one exact name word would match the whole name.
		if len(phraseTokens) > 1 && !c.tokensAlign(phraseTokens, e.tokens) {
			continue
		}
		score := bestSimilarity(phraseTokens, e.tokens, phraseLower, e.lower)
		phonetic := codesOverlap(phraseCodes, e.codes)

		switch {
		case phonetic && score >= c.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestName, bestScore, bestPhonetic = e.name, score, true
			}
		case !phonetic && !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore:
			bestName, bestScore = e.name, score
		}
	}

	if bestName == "" {
		return phrase, 0, false
	}
	return bestName, bestScore, true
}

// tokensAlign reports whether every phrase token has a plausible counterpart
// among the entity's tokens, by phonetic code overlap or Jaro-Winkler score.
func (c *Corrector) tokensAlign(phraseTokens, entityTokens []string) bool {
	for _, pt := range phraseTokens {
		ptCodes := codesFor([]string{pt})
		aligned := false
		for _, et := range entityTokens {
			if codesOverlap(ptCodes, codesFor([]string{et})) ||
				matchr.JaroWinkler(pt, et, false) >= c.phoneticThreshold {
				aligned = true
				break
			}
		}
		if !aligned {
			return false
		}
	}
	return true
}

// verify asks the chat model whether the replacement is plausible.
func (c *Corrector) verify(ctx context.Context, original, entity string) (bool, error) {
	res, err := c.verifier.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: verifySystemPrompt,
		Messages: []llm.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"The transcribed phrase %q was replaced with the known name %q. Is this replacement plausible?",
				original, entity),
		}},
	})
	if err != nil {
		return false, fmt.Errorf("transcript: verify correction: %w", err)
	}
	answer := strings.ToUpper(strings.TrimSpace(res.Content))
	return strings.HasPrefix(answer, "YES"), nil
}

// apply rebuilds the token stream with the accepted proposals substituted.
// Proposals are in ascending start order by construction.
func apply(tokens []string, proposals []proposal) (string, []Correction, error) {
	if len(proposals) == 0 {
		return strings.Join(tokens, " "), nil, nil
	}

	var (
		out         []string
		corrections []Correction
	)
	next := 0
	i := 0
	for i < len(tokens) {
		if next < len(proposals) && proposals[next].start == i {
			p := proposals[next]
			entityTokens := strings.Fields(p.entity)
			out = append(out, entityTokens...)
			if p.suffix != "" {
				out[len(out)-1] += p.suffix
			}
			corrections = append(corrections, Correction{
				Original:   p.original,
				Corrected:  p.entity,
				Confidence: p.confidence,
			})
			i += p.n
			next++
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " "), corrections, nil
}

// prepareRoster precomputes the matching data for every roster name and
// returns the maximum name word count.
func prepareRoster(roster []string) ([]rosterEntry, int) {
	entries := make([]rosterEntry, 0, len(roster))
	maxWords := 0
	for _, name := range roster {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		tokens := strings.Fields(lower)
		entries = append(entries, rosterEntry{
			name:   name,
			lower:  lower,
			tokens: tokens,
			codes:  codesFor(tokens),
		})
		if len(tokens) > maxWords {
			maxWords = len(tokens)
		}
	}
	return entries, maxWords
}

// structural reports whether the token is transcript scaffolding that must
// never be rewritten: a [mm:ss] marker or a "Speaker:" label.
func structural(tok string) bool {
	return timeMarkerRe.MatchString(tok) || strings.HasSuffix(tok, ":")
}

func spansStructural(tokens []string) bool {
	for _, t := range tokens {
		if structural(t) {
			return true
		}
	}
	return false
}

// exactPartial reports whether phrase is, verbatim, a strict subsequence of
// the entity's words ("Leosin" or "leosin erantar" inside "Leosin Erantar").
func exactPartial(phrase, entity string) bool {
	entityLower := strings.ToLower(entity)
	phraseLower := strings.ToLower(phrase)
	if phraseLower == entityLower {
		return true
	}
	for _, tok := range strings.Fields(entityLower) {
		if phraseLower == tok {
			return true
		}
	}
	return false
}

// splitPunct separates trailing sentence punctuation from a phrase so that
// "Erentar," matches the roster and the comma survives the replacement.
func splitPunct(phrase string) (core, suffix string) {
	core = strings.TrimRight(phrase, ".,!?;")
	return core, phrase[len(core):]
}

// codesFor returns the union of the Double Metaphone codes of the tokens.
func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity takes the highest Jaro-Winkler score across three views of
// the pair: the full strings, the space-stripped strings, and — for a
// single-token phrase only — the best pairwise token comparison (one spoken
// word standing in for one word of a longer name).
func bestSimilarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	if len(aTokens) == 1 {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(aTokens[0], bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
