package chat

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var localesYAML []byte

const defaultLanguage = "en"

var supportedLanguages = []language.Tag{language.English, language.Spanish, language.Dutch}

// Catalog holds the localized texts for every supported language.
type Catalog struct {
	texts   map[string]map[string]string
	matcher language.Matcher
}

// LoadCatalog parses the embedded locale file.
func LoadCatalog() (*Catalog, error) {
	var texts map[string]map[string]string
	if err := yaml.Unmarshal(localesYAML, &texts); err != nil {
		return nil, fmt.Errorf("parse locales: %w", err)
	}
	if _, ok := texts[defaultLanguage]; !ok {
		return nil, fmt.Errorf("locales: missing %q section", defaultLanguage)
	}
	return &Catalog{texts: texts, matcher: language.NewMatcher(supportedLanguages)}, nil
}

// Match picks the first candidate that maps to a supported language.
// Candidates may be plain tags ("nl-BE") or Accept-Language values.
func (c *Catalog) Match(candidates ...string) string {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(candidate)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, confidence := c.matcher.Match(tags...)
		if confidence == language.No {
			continue
		}
		base, _ := supportedLanguages[idx].Base()
		return base.String()
	}
	return defaultLanguage
}

// Locale returns the texts for lang, falling back to English per key.
func (c *Catalog) Locale(lang string) Locale {
	return Locale{Lang: lang, texts: c.texts[lang], fallback: c.texts[defaultLanguage]}
}

type Locale struct {
	Lang     string
	texts    map[string]string
	fallback map[string]string
}

// Text returns the raw text for key.
func (l Locale) Text(key string) string {
	if s, ok := l.texts[key]; ok {
		return s
	}
	if s, ok := l.fallback[key]; ok {
		return s
	}
	return key
}

// Format fills {name} placeholders from alternating name/value pairs.
func (l Locale) Format(key string, pairs ...string) string {
	if len(pairs) == 0 {
		return l.Text(key)
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(l.Text(key))
}
