// Package i18n loads the bot's reply and command description strings.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const DefaultLanguage = "en"

//go:embed locales/*.yaml
var locales embed.FS

// Translations is a flat table keyed by dotted path, e.g. "seek.success".
type Translations struct {
	lang    string
	strings map[string]string
}

// Languages lists the bundled language codes.
func Languages() []string {
	entries, _ := locales.ReadDir("locales")
	langs := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return strings.CutSuffix(e.Name(), ".yaml")
	})
	slices.Sort(langs)
	return langs
}

// Load returns the table for lang. Keys missing from lang fall back to
// English.
func Load(lang string) (*Translations, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	base, err := parse(DefaultLanguage)
	if err != nil {
		return nil, err
	}
	if lang == DefaultLanguage {
		return &Translations{lang: lang, strings: base}, nil
	}
	table, err := parse(lang)
	if err != nil {
		return nil, err
	}
	return &Translations{lang: lang, strings: lo.Assign(base, table)}, nil
}

// MustLoad is Load for the bundled defaults, which are known to parse.
func MustLoad(lang string) *Translations {
	t, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(lang string) (map[string]string, error) {
	raw, err := locales.ReadFile("locales/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown language %q", lang)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse %s translations: %w", lang, err)
	}
	out := make(map[string]string)
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

func (t *Translations) Language() string { return t.lang }

// Get returns the string for key with "{name}" placeholders replaced from
// the name/value pairs in args. Unknown keys come back as the key itself.
func (t *Translations) Get(key string, args ...string) string {
	s, ok := t.strings[key]
	if !ok {
		return key
	}
	if len(args) < 2 {
		return s
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
