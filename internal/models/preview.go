package models

import "strings"

// PreviewLength is how many characters of the plain body are kept as the
// list-view preview.
const PreviewLength = 100

// Preview derives the list-view preview from a plain-text body.
func Preview(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength])
}
