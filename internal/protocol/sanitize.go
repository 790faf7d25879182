package protocol

import "strings"

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// SanitizeName trims a requested display name and escapes angle brackets so
// it cannot inject markup into HTML clients.
func SanitizeName(name string) string {
	return markupEscaper.Replace(strings.TrimSpace(name))
}
