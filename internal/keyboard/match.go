package keyboard

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Match is a candidate scored against a search term, 0..100.
type Match struct {
	Index int
	Text  string
	Score int
}

// FuzzyMatch scores candidates against term, ignoring case, and returns the
// best limit matches (all when limit <= 0) ordered by descending score.
// Candidates scoring below minScore are dropped.
func FuzzyMatch(term string, candidates []string, limit, minScore int) []Match {
	fold := cases.Fold()
	t := strings.TrimSpace(fold.String(term))

	out := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		s := score(t, strings.TrimSpace(fold.String(c)))
		if s >= minScore {
			out = append(out, Match{Index: i, Text: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func score(term, cand string) int {
	switch {
	case term == "" || cand == "":
		return 0
	case term == cand:
		return 100
	case strings.HasPrefix(cand, term):
		return 90
	case strings.Contains(cand, term):
		return 80
	}
	return ratio(term, cand)
}

// ratio is 100 * (1 - levenshtein / longer length).
func ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer := la
	if lb > longer {
		longer = lb
	}
	return 100 - levenshtein([]rune(a), []rune(b))*100/longer
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
