package dispatch

import (
	"html"
	"regexp"

	"notify-hub/internal/domain/entity"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_.-]+)\}\}`)

// Render replaces every {{name}} placeholder in body with variables[name].
// A name absent from the map leaves its placeholder untouched, so partially
// populated templates stay visibly distinguishable instead of silently
// producing blanks. Rendering never fails.
func Render(body string, variables map[string]string) string {
	if len(variables) == 0 {
		return body
	}
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := match[2 : len(match)-2]
		value, ok := variables[name]
		if !ok {
			return match
		}
		return value
	})
}

// RenderFor renders body after escaping variable values for the target
// content type. HTML variants get entity escaping; channel-specific escaping
// (e.g. Telegram MarkdownV2) is protocol-level and lives in the adapters.
func RenderFor(contentType entity.ContentType, body string, variables map[string]string) string {
	if contentType == entity.ContentTypeHTML && len(variables) > 0 {
		escaped := make(map[string]string, len(variables))
		for name, value := range variables {
			escaped[name] = html.EscapeString(value)
		}
		variables = escaped
	}
	return Render(body, variables)
}
