package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// OtherType is the label for an empty content-type token.
const OtherType = "Other"

// typeRules is evaluated top-down; the first substring hit wins.
var typeRules = []struct {
	substr   string
	category string
}{
	{"map", "Maps"},
	{"vehicle", "Vehicles"},
	{"weapon", "Weapons"},
	{"skin", "Skins"},
	{"mutator", "Mutators"},
}

// Normalize maps one content-type word to its category label. Words that
// match no rule are lower-cased with only the first letter upper-cased.
func Normalize(token string) string {
	if token == "" {
		return OtherType
	}
	t := strings.ToLower(token)
	for _, rule := range typeRules {
		if strings.Contains(t, rule.substr) {
			return rule.category
		}
	}
	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}

// NormalizeTypes splits every content-type entry on spaces and normalizes
// each word once. Order is kept and duplicates are not removed.
func NormalizeTypes(contentTypes []string) []string {
	out := make([]string, 0, len(contentTypes))
	for _, entry := range contentTypes {
		for _, word := range strings.Split(entry, " ") {
			out = append(out, Normalize(strings.TrimSpace(word)))
		}
	}
	return out
}
