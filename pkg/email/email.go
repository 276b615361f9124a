// Package email derives presentation values from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a readable name from the local part of an address,
// e.g. "ada.lovelace+pass@example.com" becomes "Ada Lovelace". Plus-tags
// are dropped. Returns "Applicant" when nothing usable remains.
func DisplayName(address string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(address), "@")
	local, _, _ = strings.Cut(local, "+")

	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = titleCase(w)
	}
	if len(words) == 0 {
		return "Applicant"
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
