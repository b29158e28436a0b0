package quest

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// templateFuncs provides utility functions for narrative templates.
var templateFuncs = sprig.TxtFuncMap()

// NarrativeData is the data available to text/chat content templates.
type NarrativeData struct {
	PlayerName  string
	ObjectTitle string
	QuestId     string
}

// CheckNarrative parses a narrative template without executing it, so bad
// authoring fails at publish time instead of during gameplay.
func CheckNarrative(tmplStr string) error {
	_, err := template.New("").Funcs(templateFuncs).Parse(tmplStr)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}
	return nil
}

// ExpandNarrative renders a narrative template with the provided data.
// Strings without template markers are returned as-is.
func ExpandNarrative(tmplStr string, data NarrativeData) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Funcs(templateFuncs).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
