package resolver

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/hlop3z/schemadiff/internal/alerr"
)

type item struct {
	ident string
	shape string
}

func (i item) Ident() string { return i.ident }
func (i item) Shape() string { return i.shape }

func idents(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ident
	}
	return out
}

func pairs(ps []Pair[item]) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.From.ident + "->" + p.To.ident
	}
	return out
}

func join(s []string) string { return strings.Join(s, " ") }

// -----------------------------------------------------------------------------
// Mock and Fixed Tests
// -----------------------------------------------------------------------------

func TestMock(t *testing.T) {
	in := Input[item]{
		Created: []item{{ident: "dbo.users.name"}},
		Deleted: []item{{ident: "dbo.users.full_name"}},
	}
	out, err := Mock[item]{}.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(out.RenamedOrMoved) != 0 || len(out.Created) != 1 || len(out.Deleted) != 1 {
		t.Errorf("Resolve() = %+v, want pass-through", out)
	}
}

func TestMock_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Mock[item]{}).Resolve(ctx, Input[item]{}); err == nil {
		t.Error("expected context error")
	}
}

func TestFixed(t *testing.T) {
	r := NewFixed[item]("dbo.a->dbo.b", "x.t->y.t")
	in := Input[item]{
		Created: []item{{ident: "dbo.b"}, {ident: "y.t"}, {ident: "dbo.new"}},
		Deleted: []item{{ident: "dbo.gone"}, {ident: "x.t"}, {ident: "dbo.a"}},
	}
	out, err := r.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := join(pairs(out.RenamedOrMoved)); got != "dbo.a->dbo.b x.t->y.t" {
		t.Errorf("pairs = %q", got)
	}
	if got := join(idents(out.Created)); got != "dbo.new" {
		t.Errorf("created = %q", got)
	}
	if got := join(idents(out.Deleted)); got != "dbo.gone" {
		t.Errorf("deleted = %q", got)
	}
}

func TestFunc(t *testing.T) {
	called := false
	var r Resolver[item] = Func[item](func(_ context.Context, in Input[item]) (Output[item], error) {
		called = true
		return Output[item]{Created: in.Created}, nil
	})
	if _, err := r.Resolve(context.Background(), Input[item]{}); err != nil || !called {
		t.Errorf("Func not invoked (err %v)", err)
	}
}

// -----------------------------------------------------------------------------
// Heuristic Tests
// -----------------------------------------------------------------------------

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name        string
		created     []item
		deleted     []item
		wantPairs   string
		wantCreated string
		wantDeleted string
	}{
		{
			name:      "similar names",
			created:   []item{{ident: "dbo.users.email_addr", shape: "varchar(100)"}},
			deleted:   []item{{ident: "dbo.users.email_address", shape: "varchar(100)"}},
			wantPairs: "dbo.users.email_address->dbo.users.email_addr",
		},
		{
			name:        "shape mismatch",
			created:     []item{{ident: "dbo.users.email_addr", shape: "int"}},
			deleted:     []item{{ident: "dbo.users.email_address", shape: "varchar(100)"}},
			wantCreated: "dbo.users.email_addr",
			wantDeleted: "dbo.users.email_address",
		},
		{
			name:      "move keeps leaf",
			created:   []item{{ident: "auth.users"}},
			deleted:   []item{{ident: "dbo.users"}},
			wantPairs: "dbo.users->auth.users",
		},
		{
			name:        "unrelated",
			created:     []item{{ident: "dbo.invoices"}},
			deleted:     []item{{ident: "dbo.users"}},
			wantCreated: "dbo.invoices",
			wantDeleted: "dbo.users",
		},
		{
			name:        "best match wins",
			created:     []item{{ident: "dbo.customer"}, {ident: "dbo.orders_archive"}},
			deleted:     []item{{ident: "dbo.customers"}, {ident: "dbo.customer_x"}},
			wantPairs:   "dbo.customers->dbo.customer",
			wantCreated: "dbo.orders_archive",
			wantDeleted: "dbo.customer_x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewHeuristic[item]().Resolve(context.Background(), Input[item]{Created: tt.created, Deleted: tt.deleted})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := join(pairs(out.RenamedOrMoved)); got != tt.wantPairs {
				t.Errorf("pairs = %q, want %q", got, tt.wantPairs)
			}
			if got := join(idents(out.Created)); got != tt.wantCreated {
				t.Errorf("created = %q, want %q", got, tt.wantCreated)
			}
			if got := join(idents(out.Deleted)); got != tt.wantDeleted {
				t.Errorf("deleted = %q, want %q", got, tt.wantDeleted)
			}
		})
	}
}

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abc", 1},
		{"abc", "xyz", 0},
		{"martha", "marhta", 0.9611},
		{"dwayne", "duane", 0.84},
		{"dixon", "dicksonx", 0.8133},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := JaroWinkler(tt.a, tt.b)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("JaroWinkler(%q, %q) = %.4f, want %.4f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("dbo.users", "dbo.users"); got != 0 {
		t.Errorf("identical = %v, want 0", got)
	}
	if got := Similarity("dbo.users", "auth.users"); got != 1 {
		t.Errorf("move = %v, want 1", got)
	}
	if got := Similarity("dbo.Users", "dbo.users_"); got < DefaultThreshold {
		t.Errorf("case-insensitive similarity = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Interactive Tests
// -----------------------------------------------------------------------------

func TestInteractive(t *testing.T) {
	tests := []struct {
		name        string
		answers     string
		wantPairs   string
		wantCreated string
		wantDeleted string
	}{
		{
			name:        "create all",
			answers:     "\n\n",
			wantCreated: "dbo.t.a dbo.t.b",
			wantDeleted: "dbo.t.x dbo.t.y",
		},
		{
			name:        "rename second deleted",
			answers:     "2\n0\n",
			wantPairs:   "dbo.t.y->dbo.t.a",
			wantCreated: "dbo.t.b",
			wantDeleted: "dbo.t.x",
		},
		{
			name:      "rename both",
			answers:   "1\n1\n",
			wantPairs: "dbo.t.x->dbo.t.a dbo.t.y->dbo.t.b",
		},
		{
			name:        "invalid answer re-prompts",
			answers:     "9\nfoo\n1\n\n",
			wantPairs:   "dbo.t.x->dbo.t.a",
			wantCreated: "dbo.t.b",
			wantDeleted: "dbo.t.y",
		},
		{
			name:        "answer without trailing newline",
			answers:     "\n2",
			wantPairs:   "dbo.t.y->dbo.t.b",
			wantCreated: "dbo.t.a",
			wantDeleted: "dbo.t.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompts bytes.Buffer
			r := NewInteractive[item]("column", strings.NewReader(tt.answers), &prompts)
			out, err := r.Resolve(context.Background(), Input[item]{
				Created: []item{{ident: "dbo.t.a"}, {ident: "dbo.t.b"}},
				Deleted: []item{{ident: "dbo.t.x"}, {ident: "dbo.t.y"}},
			})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := join(pairs(out.RenamedOrMoved)); got != tt.wantPairs {
				t.Errorf("pairs = %q, want %q", got, tt.wantPairs)
			}
			if got := join(idents(out.Created)); got != tt.wantCreated {
				t.Errorf("created = %q, want %q", got, tt.wantCreated)
			}
			if got := join(idents(out.Deleted)); got != tt.wantDeleted {
				t.Errorf("deleted = %q, want %q", got, tt.wantDeleted)
			}
			if !strings.Contains(prompts.String(), "dbo.t.a") {
				t.Error("prompt did not name the candidate")
			}
		})
	}
}

func TestInteractive_OneSided(t *testing.T) {
	var prompts bytes.Buffer
	r := NewInteractive[item]("table", strings.NewReader(""), &prompts)
	out, err := r.Resolve(context.Background(), Input[item]{Created: []item{{ident: "dbo.t"}}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(out.Created) != 1 || prompts.Len() != 0 {
		t.Errorf("one-sided input must pass through without prompting")
	}
}

func TestInteractive_InputClosed(t *testing.T) {
	var prompts bytes.Buffer
	r := NewInteractive[item]("table", strings.NewReader(""), &prompts)
	_, err := r.Resolve(context.Background(), Input[item]{
		Created: []item{{ident: "dbo.b"}},
		Deleted: []item{{ident: "dbo.a"}},
	})
	if !alerr.Is(err, alerr.ErrResolverFailed) {
		t.Errorf("error = %v, want %s", err, alerr.ErrResolverFailed)
	}
}
