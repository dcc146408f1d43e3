// Package reconcile decides whether a newly mentioned entity is an existing
// canonical record, a genuinely new one, or an ambiguous case that needs a
// human call.
//
// The [Resolver] scores a detected mention against the campaign roster with a
// lexical matcher (string distance, phonetics, description overlap). A
// high-confidence non-identical match suspends the mention into a
// [knowledge.PendingMerge] and posts a disambiguation prompt through the
// notifier; the human's reply drives a small state machine
// (PROPOSED → CONFIRMED | CREATED_NEW | REDIRECTED). Pending merges are
// persisted so an unanswered prompt survives a restart, and a [Janitor]
// expires prompts nobody answers.
package reconcile

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// nameWeight and descWeight blend the two scoring signals. Names dominate:
	// a near-identical name is strong evidence even with disjoint
	// descriptions.
	nameWeight = 0.7
	descWeight = 0.3

	// minMatchConfidence is the floor below which a best candidate is not
	// reported as a match at all.
	minMatchConfidence = 0.5
)

// Match is the matcher's verdict on a detected name: the canonical roster
// name it most likely refers to, with a confidence in [0,1].
type Match struct {
	Name       string
	Confidence float64
}

// score rates how likely detected and canonical describe the same entity.
//
// The name signal is the better of Jaro-Winkler distance and per-token
// phonetic (double metaphone) agreement, so both spelling drift ("Erentar"
// for "Erantar") and homophone transcription errors score high. The
// description signal is plain token overlap.
func score(detectedName, detectedDesc, canonicalName, canonicalDesc string) float64 {
	nameScore := matchr.JaroWinkler(strings.ToLower(detectedName), strings.ToLower(canonicalName), false)
	if p := phoneticScore(detectedName, canonicalName); p > nameScore {
		nameScore = p
	}
	return nameWeight*nameScore + descWeight*tokenOverlap(detectedDesc, canonicalDesc)
}

// phoneticScore is the fraction of name tokens whose double-metaphone
// primary codes agree, position by position.
func phoneticScore(a, b string) float64 {
	ta, tb := strings.Fields(strings.ToLower(a)), strings.Fields(strings.ToLower(b))
	if len(ta) == 0 || len(tb) == 0 || len(ta) != len(tb) {
		return 0
	}
	matched := 0
	for i := range ta {
		pa, _ := matchr.DoubleMetaphone(ta[i])
		pb, _ := matchr.DoubleMetaphone(tb[i])
		if pa != "" && pa == pb {
			matched++
		}
	}
	return float64(matched) / float64(len(ta))
}

// tokenOverlap is the Jaccard index of the two texts' word sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}
