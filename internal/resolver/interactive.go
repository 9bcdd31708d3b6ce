package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/cli"
)

// Interactive asks the user, for every created candidate, whether it is new
// or a rename of one of the remaining deleted candidates.
type Interactive[T Entity] struct {
	Kind string // shown in prompts, e.g. "column"
	In   *bufio.Reader
	Out  io.Writer
}

// NewInteractive returns an interactive resolver reading answers from in.
func NewInteractive[T Entity](kind string, in io.Reader, out io.Writer) *Interactive[T] {
	return &Interactive[T]{Kind: kind, In: bufio.NewReader(in), Out: out}
}

// Resolve prompts only when both sides have candidates.
func (r *Interactive[T]) Resolve(ctx context.Context, in Input[T]) (Output[T], error) {
	if len(in.Created) == 0 || len(in.Deleted) == 0 {
		return Output[T]{Created: in.Created, Deleted: in.Deleted}, nil
	}

	remaining := append([]T(nil), in.Deleted...)
	var out Output[T]
	for _, c := range in.Created {
		if err := ctx.Err(); err != nil {
			return Output[T]{}, err
		}
		if len(remaining) == 0 {
			out.Created = append(out.Created, c)
			continue
		}
		choice, err := r.ask(c, remaining)
		if err != nil {
			return Output[T]{}, alerr.Wrap(alerr.ErrResolverFailed, err, "rename prompt failed").
				With("kind", r.Kind).
				With("candidate", c.Ident())
		}
		if choice == 0 {
			out.Created = append(out.Created, c)
			continue
		}
		from := remaining[choice-1]
		remaining = append(remaining[:choice-1], remaining[choice:]...)
		out.RenamedOrMoved = append(out.RenamedOrMoved, Pair[T]{From: from, To: c})
	}
	out.Deleted = remaining
	return out, nil
}

// ask returns 0 for "create" or the 1-based index of the renamed candidate.
func (r *Interactive[T]) ask(c T, deleted []T) (int, error) {
	fmt.Fprintf(r.Out, "%s Is %s created or renamed from another %s?\n", cli.Cyan("?"), cli.Bold(c.Ident()), r.Kind)
	fmt.Fprintf(r.Out, "  %s %s %s\n", cli.Muted("0."), cli.Green("+"), c.Ident()+cli.Muted("  create "+r.Kind))
	for i, d := range deleted {
		fmt.Fprintf(r.Out, "  %s %s %s\n", cli.Muted(strconv.Itoa(i+1)+"."), cli.Yellow("~"),
			d.Ident()+" › "+c.Ident()+cli.Muted("  rename "+r.Kind))
	}

	for {
		fmt.Fprint(r.Out, cli.Cyan("Select")+cli.Muted(" (0)")+": ")
		line, err := r.In.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return 0, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return 0, nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= 0 && n <= len(deleted) {
			return n, nil
		}
		fmt.Fprintf(r.Out, "%s must be between 0 and %d\n", cli.Red("✗"), len(deleted))
		if err != nil {
			return 0, err
		}
	}
}
