package engine

import "context"

// PageSize is the block size remote playlist APIs hand out.
const PageSize = 100

// pager is a remote playlist that is cheap to read one page at a time.
// Positions count playlist slots, so a page may carry fewer items than it
// covers when the source drops unplayable entries.
type pager[T any] interface {
	// First returns the items of the first PageSize positions and whether
	// the playlist continues past them.
	First(ctx context.Context) ([]T, bool, error)
	// Next returns the items of up to n positions following the first page.
	Next(ctx context.Context, n int) ([]T, error)
	// All returns every item.
	All(ctx context.Context) ([]T, error)
}

// fetchLimited applies the two-tier limit policy: no limit reads everything,
// a limit within the first page truncates it, anything larger reads the first
// page and then exactly the remainder.
func fetchLimited[T any](ctx context.Context, p pager[T], limit int) ([]T, error) {
	if limit <= 0 {
		return p.All(ctx)
	}

	first, more, err := p.First(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= PageSize {
		return first[:min(limit, len(first))], nil
	}
	if !more {
		return first, nil
	}

	rest, err := p.Next(ctx, limit-PageSize)
	if err != nil {
		return nil, err
	}
	out := append(first, rest...)
	return out[:min(limit, len(out))], nil
}
