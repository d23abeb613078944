// Package template renders the title and description of tickets created by
// recurring rules, e.g. "Backup check {{ date \"2006-01-02\" .Now }}".
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Data is what a rule template can refer to.
type Data struct {
	RuleID  string
	Rule    string
	Process string
	// Execution is the 1-based number of the execution being created.
	Execution int
	Now       time.Time
}

var funcs = template.FuncMap{
	"date": func(layout string, t time.Time) string {
		return t.Format(layout)
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"addDays": func(days int, t time.Time) time.Time {
		return t.AddDate(0, 0, days)
	},
}

// IsTemplate reports whether text contains template actions. Other text is
// used verbatim.
func IsTemplate(text string) bool {
	return strings.Contains(text, "{{")
}

func parse(text string) (*template.Template, error) {
	tmpl, err := template.New("ticket").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", text, err)
	}

	return tmpl, nil
}

// Render executes text against data.
func Render(text string, data Data) (string, error) {
	if !IsTemplate(text) {
		return text, nil
	}

	tmpl, err := parse(text)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", text, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Validate renders text against sample data so that unknown fields and
// functions are reported when a rule is saved rather than when it runs.
func Validate(text string) error {
	_, err := Render(text, Data{
		RuleID:    "rule",
		Rule:      "rule",
		Process:   "process",
		Execution: 1,
		Now:       time.Now().UTC(),
	})

	return err
}
