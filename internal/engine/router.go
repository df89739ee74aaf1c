package engine

import (
	"context"
	"slices"

	"github.com/samber/lo"
)

type entry struct {
	tag    string
	engine Engine
}

// Router resolves source tags to engines. Custom engines are keyed by the tag
// they are registered under, shadow built-ins with the same tag and are
// consulted first during detection.
type Router struct {
	order    []entry
	fallback string
}

func NewRouter(builtins []Engine, custom map[string]Engine) *Router {
	keys := lo.Keys(custom)
	slices.Sort(keys)

	order := make([]entry, 0, len(custom)+len(builtins))
	for _, k := range keys {
		if e := custom[k]; e != nil {
			order = append(order, entry{tag: k, engine: e})
		}
	}
	for _, e := range builtins {
		order = append(order, entry{tag: e.Source(), engine: e})
	}
	return &Router{order: order, fallback: SourceYouTube}
}

// Detect returns the tag of the first engine claiming the query, or youtube
// when none does.
func (r *Router) Detect(ctx context.Context, query string, cfg Config) string {
	for _, en := range r.order {
		if en.engine.IsResponsible(ctx, query, cfg) {
			return en.tag
		}
	}
	return r.fallback
}

func (r *Router) Engine(source string) (Engine, bool) {
	en, ok := lo.Find(r.order, func(en entry) bool { return en.tag == source })
	return en.engine, ok
}

func (r *Router) Sources() []string {
	return lo.Uniq(lo.Map(r.order, func(en entry, _ int) string { return en.tag }))
}
