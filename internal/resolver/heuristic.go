package resolver

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// DefaultThreshold is the minimum similarity for the heuristic to pair a
// deleted and a created candidate.
const DefaultThreshold = 0.85

// Heuristic pairs candidates of equal shape whose names are similar. Same
// name under a different qualifier (schema or table) is a move and always
// pairs.
type Heuristic[T Entity] struct {
	Threshold float64
}

// NewHeuristic returns a heuristic resolver with the default threshold.
func NewHeuristic[T Entity]() Heuristic[T] {
	return Heuristic[T]{Threshold: DefaultThreshold}
}

type scoredPair struct {
	deleted, created int
	score            float64
}

// Resolve greedily accepts the best scoring pairs first.
func (h Heuristic[T]) Resolve(ctx context.Context, in Input[T]) (Output[T], error) {
	if err := ctx.Err(); err != nil {
		return Output[T]{}, err
	}
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var pairs []scoredPair
	for di, d := range in.Deleted {
		for ci, c := range in.Created {
			if !shapesCompatible(d.Shape(), c.Shape()) {
				continue
			}
			score := Similarity(d.Ident(), c.Ident())
			if score >= threshold {
				pairs = append(pairs, scoredPair{deleted: di, created: ci, score: score})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	usedDeleted := make([]bool, len(in.Deleted))
	usedCreated := make([]bool, len(in.Created))
	var out Output[T]
	for _, p := range pairs {
		if usedDeleted[p.deleted] || usedCreated[p.created] {
			continue
		}
		usedDeleted[p.deleted] = true
		usedCreated[p.created] = true
		from, to := in.Deleted[p.deleted], in.Created[p.created]
		slog.Debug("heuristic rename", "from", from.Ident(), "to", to.Ident(), "score", p.score)
		out.RenamedOrMoved = append(out.RenamedOrMoved, Pair[T]{From: from, To: to})
	}
	for i, c := range in.Created {
		if !usedCreated[i] {
			out.Created = append(out.Created, c)
		}
	}
	for i, d := range in.Deleted {
		if !usedDeleted[i] {
			out.Deleted = append(out.Deleted, d)
		}
	}
	return out, nil
}

func shapesCompatible(a, b string) bool {
	return a == "" || b == "" || a == b
}

// Similarity scores two qualified names. Equal leaf names score 1 (a move);
// otherwise leaves are compared with Jaro-Winkler.
func Similarity(from, to string) float64 {
	if from == to {
		return 0
	}
	lf, lt := leaf(from), leaf(to)
	if lf == lt {
		return 1
	}
	return JaroWinkler(strings.ToLower(lf), strings.ToLower(lt))
}

func leaf(ident string) string {
	if i := strings.LastIndexByte(ident, '.'); i >= 0 {
		return ident[i+1:]
	}
	return ident
}

// JaroWinkler computes the Jaro-Winkler similarity of two strings, from 0
// (nothing in common) to 1 (identical).
func JaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		start := max(0, i-window)
		end := min(len(b), i+window+1)
		for j := start; j < end; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i], bMatched[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions, k := 0, 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions/2))/m) / 3

	// Winkler boost for a common prefix of up to four runes.
	prefix := 0
	for i := 0; i < len(a) && i < len(b) && i < 4 && a[i] == b[i]; i++ {
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}
