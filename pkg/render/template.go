package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/newtron-network/newtcli/pkg/rangeset"
)

// Template is one compiled command template. Its output may span several
// lines ({{range}} loops); every non-blank output line is one command.
type Template struct {
	name string
	tmpl *template.Template
}

// funcs returns the helper functions available to every template. compact
// uses the profile's range grammar.
func funcs(g rangeset.Grammar) template.FuncMap {
	return template.FuncMap{
		"compact": func(items []string) (string, error) {
			s, err := g.ExpandTokens(items...)
			if err != nil {
				return "", err
			}
			return g.Compact(s), nil
		},
		"join":  func(sep string, items []string) string { return strings.Join(items, sep) },
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"quote": func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"` },
		"add":   func(a, b int) int { return a + b },
	}
}

// Compile parses text as a command template. Missing map keys are errors
// so a typo in a profile fails loudly rather than emitting a broken line.
func Compile(name, text string, g rangeset.Grammar) (*Template, error) {
	tmpl, err := template.New(name).Funcs(funcs(g)).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(name, text string) *Template {
	t, err := Compile(name, text, rangeset.Default)
	if err != nil {
		panic(err)
	}
	return t
}

// Lines executes the template and splits the output into commands.
func (t *Template) Lines(data interface{}) ([]string, error) {
	if t == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", t.name, err)
	}
	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func (t *Template) String() string {
	if t == nil {
		return ""
	}
	return t.name
}
