package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
)

// shownElsewhere lists context keys with their own section.
var shownElsewhere = map[string]bool{
	"sql":   true,
	"notes": true,
	"helps": true,
}

// FormatError renders err Cargo style:
//
//	error[E4003]: migration failed
//	   |
//	   | batch: 2
//	   | migration: 0003_add_orders
//	   |
//	   = sql:
//	       ALTER TABLE ...
//	note: cause: Invalid object name
//	help: ...
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var ae *alerr.Error
	if !errors.As(err, &ae) {
		return Error("error") + ": " + err.Error() + "\n"
	}

	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(ae.GetCode())))
	b.WriteString("]: ")
	b.WriteString(ae.GetMessage())
	b.WriteString("\n")

	ctx := ae.GetContext()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if !shownElsewhere[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		b.WriteString("   " + Pipe() + "\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "   %s %s: %v\n", Pipe(), k, ctx[k])
		}
	}

	if sql, ok := ctx["sql"].(string); ok && sql != "" {
		b.WriteString("   " + Pipe() + "\n")
		b.WriteString("   = sql:\n")
		for _, line := range strings.Split(strings.TrimRight(sql, "\n"), "\n") {
			b.WriteString("       ")
			b.WriteString(Muted(line))
			b.WriteString("\n")
		}
	}

	for _, note := range ae.Notes() {
		b.WriteString(Note("note"))
		b.WriteString(": ")
		b.WriteString(note)
		b.WriteString("\n")
	}
	if cause := ae.GetCause(); cause != nil {
		b.WriteString(Note("note"))
		b.WriteString(": cause: ")
		b.WriteString(cause.Error())
		b.WriteString("\n")
	}
	for _, help := range ae.Helps() {
		b.WriteString(Help("help"))
		b.WriteString(": ")
		b.WriteString(help)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatWarning renders a warning line.
func FormatWarning(msg string) string {
	return Warning("warning") + ": " + msg + "\n"
}

// FormatNote renders a note line.
func FormatNote(msg string) string {
	return Note("note") + ": " + msg + "\n"
}

// FormatSuccess renders a success line.
func FormatSuccess(msg string) string {
	return Green("✓") + " " + msg + "\n"
}
