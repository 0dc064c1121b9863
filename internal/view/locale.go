package view

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

const defaultDateLayout = "Jan 2, 2006"

// Supported locales and their short date layout. The first entry is the
// default.
var dateLocales = []struct {
	tag    language.Tag
	layout string
}{
	{language.AmericanEnglish, defaultDateLayout},
	{language.BritishEnglish, "2 Jan 2006"},
	{language.German, "02.01.2006"},
	{language.French, "02/01/2006"},
	{language.BrazilianPortuguese, "02/01/2006"},
	{language.Japanese, "2006/01/02"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateLocales))
	for i, l := range dateLocales {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// Locale selects how dates are written. The zero value is en-US.
type Locale struct {
	Tag        language.Tag
	dateLayout string
}

// MatchLocale picks the best supported locale for an Accept-Language
// header. An empty or malformed header gives en-US.
func MatchLocale(acceptLanguage string) Locale {
	def := Locale{Tag: dateLocales[0].tag, dateLayout: dateLocales[0].layout}

	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}

	_, idx, conf := dateMatcher.Match(tags...)
	if conf == language.No {
		return def
	}
	l := dateLocales[idx]
	return Locale{Tag: l.tag, dateLayout: l.layout}
}

// FormatDate writes t as month, day and year in the locale's order.
func (l Locale) FormatDate(t time.Time) string {
	layout := l.dateLayout
	if layout == "" {
		layout = defaultDateLayout
	}
	return t.Format(layout)
}
