package recommend

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/source"
)

// resolveAll collects availability for isbn from every adapter. Records
// keep adapter order regardless of how the checks were scheduled.
func (o *Orchestrator) resolveAll(ctx context.Context, isbn string, adapters []source.Adapter, skipCache bool) []books.AvailabilityRecord {
	found := make([]*books.AvailabilityRecord, len(adapters))

	if o.cfg.ParallelSources && len(adapters) > 1 {
		var g errgroup.Group
		for i, a := range adapters {
			g.Go(func() error {
				found[i] = o.resolve(ctx, isbn, a, skipCache)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, a := range adapters {
			found[i] = o.resolve(ctx, isbn, a, skipCache)
		}
	}

	records := []books.AvailabilityRecord{}
	for _, r := range found {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

// resolve is the cache-or-fetch step for one adapter. Negative results are
// cached; failures are logged and never cached.
func (o *Orchestrator) resolve(ctx context.Context, isbn string, a source.Adapter, skipCache bool) *books.AvailabilityRecord {
	name := a.Name()

	if !skipCache {
		if record, ok := o.cache.Get(isbn, name); ok {
			slog.Debug("Availability cache hit", "source", name, "isbn", isbn, "found", record != nil)
			return record
		}
		slog.Debug("Availability cache miss", "source", name, "isbn", isbn)
	}

	record, err := a.Check(ctx, isbn)
	if err != nil {
		slog.Warn("Source check failed", "source", name, "isbn", isbn, "error", err)
		return nil
	}

	o.cache.SetWithTTL(isbn, name, record, o.cfg.CacheTTL)
	return record
}
