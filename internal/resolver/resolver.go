// Package resolver decides which created and deleted entities of a diff are
// really renames or moves of one another.
package resolver

import (
	"context"
)

// Entity is anything a resolver can present and compare.
type Entity interface {
	// Ident is the qualified display name, such as "dbo.users.email".
	Ident() string
	// Shape is compared for equality by the heuristic resolver. An empty
	// shape is compatible with everything.
	Shape() string
}

// Pair is one resolved rename or move.
type Pair[T any] struct {
	From T
	To   T
}

// Input holds the candidates of one resolution.
type Input[T any] struct {
	Created []T
	Deleted []T
}

// Output partitions an Input. Every candidate appears exactly once, either
// unchanged in Created or Deleted, or as one side of a pair.
type Output[T any] struct {
	Created        []T
	Deleted        []T
	RenamedOrMoved []Pair[T]
}

// Resolver partitions created and deleted candidates.
type Resolver[T Entity] interface {
	Resolve(ctx context.Context, in Input[T]) (Output[T], error)
}

// Func adapts a function to a Resolver.
type Func[T Entity] func(ctx context.Context, in Input[T]) (Output[T], error)

// Resolve calls f.
func (f Func[T]) Resolve(ctx context.Context, in Input[T]) (Output[T], error) {
	return f(ctx, in)
}

// Mock treats every candidate as a real create or drop.
type Mock[T Entity] struct{}

// Resolve returns the input unchanged.
func (Mock[T]) Resolve(ctx context.Context, in Input[T]) (Output[T], error) {
	if err := ctx.Err(); err != nil {
		return Output[T]{}, err
	}
	return Output[T]{Created: in.Created, Deleted: in.Deleted}, nil
}

// Fixed resolves the listed renames by Ident and passes everything else
// through. Keys are "<from ident>-><to ident>".
type Fixed[T Entity] struct {
	Renames map[string]bool
}

// NewFixed builds a Fixed resolver from "<from>-><to>" strings.
func NewFixed[T Entity](renames ...string) Fixed[T] {
	m := make(map[string]bool, len(renames))
	for _, r := range renames {
		m[r] = true
	}
	return Fixed[T]{Renames: m}
}

// Resolve pairs the candidates named in r.Renames.
func (r Fixed[T]) Resolve(ctx context.Context, in Input[T]) (Output[T], error) {
	if err := ctx.Err(); err != nil {
		return Output[T]{}, err
	}
	var out Output[T]
	usedDeleted := make([]bool, len(in.Deleted))
	for _, c := range in.Created {
		matched := false
		for i, d := range in.Deleted {
			if usedDeleted[i] || !r.Renames[d.Ident()+"->"+c.Ident()] {
				continue
			}
			usedDeleted[i] = true
			out.RenamedOrMoved = append(out.RenamedOrMoved, Pair[T]{From: d, To: c})
			matched = true
			break
		}
		if !matched {
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
