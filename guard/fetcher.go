package guard

import (
	"context"

	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/core"
)

// Fetcher routes fetches through the breaker of the fetcher's source kind:
// code hosts are external APIs, everything else is web scraping.
type Fetcher struct {
	next     acquire.Fetcher
	registry *breaker.Registry
	category breaker.Category
}

var _ acquire.Fetcher = (*Fetcher)(nil)

// NewFetcher wraps next.
func NewFetcher(next acquire.Fetcher, registry *breaker.Registry) *Fetcher {
	category := breaker.WebScraping
	if next.Kind() == core.SourceCodeHost {
		category = breaker.ExternalAPI
	}
	return &Fetcher{next: next, registry: registry, category: category}
}

func (g *Fetcher) Kind() core.SourceKind { return g.next.Kind() }

func (g *Fetcher) Destination(target core.AcquisitionTarget) string {
	return g.next.Destination(target)
}

func (g *Fetcher) Fetch(ctx context.Context, target core.AcquisitionTarget) (acquire.RawContent, error) {
	return breaker.Call(ctx, g.registry, g.category, g.next.Destination(target), func(ctx context.Context) (acquire.RawContent, error) {
		return g.next.Fetch(ctx, target)
	})
}

// Category is the breaker category fetches are counted under.
func (g *Fetcher) Category() breaker.Category {
	return g.category
}
