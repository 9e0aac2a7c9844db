package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate expands {{...}} placeholders in instruction text against
// the given state, typically the conversation context as a flat map. Text
// without markers is returned untouched.
//
// The "default" helper substitutes a fallback for unset context fields:
//
//	{{default "[unknown]" .inquiry_id}}
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instructions").Funcs(template.FuncMap{
		"default": func(fallback any, val any) any {
			if val == nil || val == "" {
				return fallback
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}
	return buf.String(), nil
}
