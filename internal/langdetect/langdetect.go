// Package langdetect routes text to a voice language by Unicode script.
package langdetect

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Default is returned when no regional script is present.
const Default = "en-IN"

// Script maps a Unicode script to the language tag spoken for it.
type Script struct {
	Name  string
	Table *unicode.RangeTable
	Tag   string
}

// Scripts are checked in this order; the first one present in the text wins.
// Devanagari resolves to Hindi and Bengali script to Bengali: Marathi and
// Assamese need an explicit tag.
var Scripts = []Script{
	{Name: "Devanagari", Table: unicode.Devanagari, Tag: "hi-IN"},
	{Name: "Bengali", Table: unicode.Bengali, Tag: "bn-IN"},
	{Name: "Gurmukhi", Table: unicode.Gurmukhi, Tag: "pa-IN"},
	{Name: "Gujarati", Table: unicode.Gujarati, Tag: "gu-IN"},
	{Name: "Oriya", Table: unicode.Oriya, Tag: "or-IN"},
	{Name: "Tamil", Table: unicode.Tamil, Tag: "ta-IN"},
	{Name: "Telugu", Table: unicode.Telugu, Tag: "te-IN"},
	{Name: "Kannada", Table: unicode.Kannada, Tag: "kn-IN"},
	{Name: "Malayalam", Table: unicode.Malayalam, Tag: "ml-IN"},
	{Name: "Arabic", Table: unicode.Arabic, Tag: "ur-IN"},
}

// Detect returns the tag of the first script in Scripts present in text, or Default.
func Detect(text string) string {
	return DetectOr(text, Default)
}

// DetectOr is Detect with a caller-supplied fallback.
func DetectOr(text, fallback string) string {
	for _, s := range Scripts {
		if containsScript(text, s.Table) {
			return s.Tag
		}
	}
	return fallback
}

func containsScript(text string, table *unicode.RangeTable) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.Is(table, r)
	}) >= 0
}

// Normalize canonicalizes a BCP-47 tag ("ta_in" -> "ta-IN"). Unparseable or
// empty tags yield Default.
func Normalize(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil || t == language.Und {
		return Default
	}
	return t.String()
}

// Regional returns tag with an explicit region, assuming India when the tag
// carries none ("ta" -> "ta-IN").
func Regional(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil || t == language.Und {
		return Default
	}
	base, _ := t.Base()
	region, conf := t.Region()
	if conf != language.Exact {
		region = language.MustParseRegion("IN")
	}
	out, err := language.Compose(base, region)
	if err != nil {
		return Default
	}
	return out.String()
}

// Base returns the primary language subtag ("ta-IN" -> "ta").
func Base(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return ""
	}
	base, _ := t.Base()
	return base.String()
}
