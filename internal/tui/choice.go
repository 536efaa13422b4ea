package tui

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jask/demandboard/internal/party"
)

const maxMatches = 5

// rank orders options against what the user typed. Fuzzy matches come
// first, closest first; when nothing matches, the three options whose
// organisation name is nearest by edit distance are offered instead.
func rank(query string, options []string) []string {
	q := strings.TrimSpace(query)
	if q == "" {
		return append([]string(nil), options...)
	}

	ranks := fuzzy.RankFindNormalizedFold(q, options)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		out := make([]string, len(ranks))
		for i, r := range ranks {
			out[i] = r.Target
		}
		return out
	}

	type scored struct {
		name string
		dist int
	}
	near := make([]scored, 0, len(options))
	lq := strings.ToLower(q)
	for _, o := range options {
		org := party.Parse(o).Organisation()
		if org == "" {
			org = o
		}
		near = append(near, scored{name: o, dist: levenshtein.ComputeDistance(lq, strings.ToLower(org))})
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	if len(near) > 3 {
		near = near[:3]
	}
	out := make([]string, len(near))
	for i, s := range near {
		out[i] = s.name
	}
	return out
}

// resolveChoice turns typed text into an option. An exact match wins, then
// a suggestion the user moved onto; otherwise the text is sent as typed and
// left to the backend to reject.
func resolveChoice(text string, matches []string, sel int, picked bool) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	for _, m := range matches {
		if party.Same(m, t) {
			return m
		}
	}
	if picked && sel >= 0 && sel < len(matches) {
		return matches[sel]
	}
	return t
}
