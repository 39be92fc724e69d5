// Package locale negotiates the page language and translates the few
// strings the login pages render.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Default is used when nothing in the request matches.
const Default = "az"

// Supported lists the locales served, in path-segment form.
var Supported = []string{"az", "en", "ru"}

// IsSupported reports whether seg is a served locale.
func IsSupported(seg string) bool {
	for _, l := range Supported {
		if l == seg {
			return true
		}
	}
	return false
}

// Negotiator picks a served locale from an Accept-Language header.
type Negotiator struct {
	tags    []language.Tag
	matcher language.Matcher
}

// NewNegotiator creates a Negotiator that falls back to def.
func NewNegotiator(def string) *Negotiator {
	if !IsSupported(def) {
		def = Default
	}
	tags := []language.Tag{language.Make(def)}
	for _, l := range Supported {
		if l != def {
			tags = append(tags, language.Make(l))
		}
	}
	return &Negotiator{tags: tags, matcher: language.NewMatcher(tags)}
}

// Match returns the best served locale for acceptLanguage.
func (n *Negotiator) Match(acceptLanguage string) string {
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return n.Default()
	}
	_, idx, conf := n.matcher.Match(desired...)
	if conf == language.No {
		return n.Default()
	}
	base, _ := n.tags[idx].Base()
	return base.String()
}

// Default returns the fallback locale.
func (n *Negotiator) Default() string {
	base, _ := n.tags[0].Base()
	return base.String()
}

var cat = buildCatalog()

// Printer returns a message printer for locale.
func Printer(locale string) *message.Printer {
	if !IsSupported(locale) {
		locale = Default
	}
	return message.NewPrinter(language.Make(locale), message.Catalog(cat))
}

// T translates key for locale, returning key itself when no translation exists.
func T(locale, key string) string {
	if _, ok := translations[key]; !ok {
		return key
	}
	return Printer(locale).Sprintf(key)
}

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, byLocale := range translations {
		for l, msg := range byLocale {
			_ = b.SetString(language.Make(l), key, escapePercent(msg))
		}
		_ = b.SetString(language.English, key, escapePercent(key))
	}
	return b
}

func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
