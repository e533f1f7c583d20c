// Package cli provides shared formatting helpers for the newtcli tool.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/newtron-network/newtcli/pkg/change"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green. Returns s unchanged when NO_COLOR is set.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow. Returns s unchanged when NO_COLOR is set.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red. Returns s unchanged when NO_COLOR is set.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold. Returns s unchanged when NO_COLOR is set.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim. Returns s unchanged when NO_COLOR is set.
func Dim(s string) string { return paint("\033[2m", s) }

// OpLine formats a change op as a diff line: additions green with "+",
// removals red with "-".
func OpLine(op change.Op) string {
	switch op.Kind {
	case change.SetAttribute, change.AddListItem:
		return Green("+ " + op.String())
	default:
		return Red("- " + op.String())
	}
}

// PrintChanges writes ops as diff lines and the command text below them.
// Commands without ops, such as the create of an entity without
// attributes, are still printed.
func PrintChanges(w io.Writer, ops change.List, commands []string) {
	if len(ops) == 0 && len(commands) == 0 {
		fmt.Fprintln(w, Dim("(no changes)"))
		return
	}
	for _, op := range ops {
		fmt.Fprintln(w, "  "+OpLine(op))
	}
	if len(commands) == 0 {
		return
	}
	if len(ops) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, Bold("Commands:"))
	for _, c := range commands {
		fmt.Fprintln(w, "  "+c)
	}
}
