package cli

import "testing"

func TestTable(t *testing.T) {
	tbl := NewTable("#", "STATEMENT")
	tbl.AddRow("1", "create_table")
	tbl.AddRow("10", "add_column", "ignored")
	tbl.AddRow("11")

	if tbl.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tbl.Len())
	}
	want := "#   STATEMENT\n" +
		"──  ────────────\n" +
		"1   create_table\n" +
		"10  add_column\n" +
		"11  \n"
	if got := tbl.String(); got != want {
		t.Errorf("String() =\n%q\nwant:\n%q", got, want)
	}
}

func TestTable_NoHeaders(t *testing.T) {
	if got := NewTable().String(); got != "" {
		t.Errorf("String() = %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 tables"},
		{1, "1 table"},
		{2, "2 tables"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.n, "table", "tables"); got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSectionAndIndent(t *testing.T) {
	if got := Indent("a\n\nb", 2); got != "  a\n\n  b" {
		t.Errorf("Indent() = %q", got)
	}
	if got := Section("Renames", "dbo.a -> dbo.b"); got != "Renames\n  dbo.a -> dbo.b" {
		t.Errorf("Section() = %q", got)
	}
}
