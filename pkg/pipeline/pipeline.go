// Package pipeline turns a document into a DocumentResult.
//
// A Pipeline is created once per process. It owns the document admission semaphore and
// the engine worker pool, both shared by every Process call. A document is rasterized,
// its pages fan out, each page is prepared once per distinct engine requirement, every
// engine runs on the pool through engine.Invoke, and the results are merged per page and
// assembled in page order.
//
// Rasterization errors abort the document. Engine errors only degrade a page; the
// document fails with DocumentFailed when no page produced any output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gardar/ocrmux/pkg/engine"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/prep"
	"github.com/gardar/ocrmux/pkg/result"
)

// Rasterizer turns a document into pages.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc result.Document) ([]result.Page, error)
}

// Pipeline processes documents with a fixed set of engines.
type Pipeline struct {
	cfg       Config
	raster    Rasterizer
	engines   []engine.Engine
	admission *semaphore.Weighted
	pool      *ants.Pool
	logger    log.Logger
}

// New validates cfg and starts the worker pool.
func New(cfg Config, r Rasterizer, engines ...engine.Engine) (*Pipeline, error) {
	if r == nil {
		return nil, errors.New("pipeline: no rasterizer")
	}
	if len(engines) == 0 {
		return nil, errors.New("pipeline: no engines")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	pool, err := ants.NewPool(cfg.EngineWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pipeline{
		cfg:       cfg,
		raster:    r,
		engines:   engines,
		admission: semaphore.NewWeighted(int64(cfg.MaxDocuments)),
		pool:      pool,
		logger:    cfg.Logger,
	}, nil
}

// Engines returns the engine names in dispatch order.
func (p *Pipeline) Engines() []string {
	names := make([]string, len(p.engines))
	for i, e := range p.engines {
		names[i] = e.Name()
	}
	return names
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close stops the worker pool, waiting for running engine calls up to timeout.
func (p *Pipeline) Close(timeout time.Duration) error {
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Process runs the document through every engine. It blocks until the document is
// admitted. A cancelled ctx returns ctx.Err() unwrapped and no result.
func (p *Pipeline) Process(ctx context.Context, data []byte, mediaType string) (*result.DocumentResult, error) {
	if err := p.admission.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.admission.Release(1)
	start := time.Now()

	pages, err := p.rasterize(ctx, data, mediaType)
	if err != nil {
		return nil, err
	}
	tr := newTracker(len(pages), p.logger)
	if err := tr.advanceAll(Rasterized); err != nil {
		return nil, err
	}

	merged := make([]result.MergedPage, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.PageParallelism)
	for i := range pages {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			mp, err := p.processPage(gctx, tr, pages[i])
			if err != nil {
				tr.fail(i)
				return err
			}
			mp.Index = i
			merged[i] = mp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := result.Assemble(merged)
	if err != nil {
		return nil, err
	}
	if failed := doc.FailedPages(); len(failed) == len(doc.Pages) {
		p.logger.Warnw("every page failed", "pages", len(doc.Pages), "elapsed", time.Since(start))
		return nil, ocrerr.New(ocrerr.DocumentFailed, "no page could be processed").AtPage(failed[0])
	}
	p.logger.Infow("document processed", "pages", len(doc.Pages), "status", doc.Status, "elapsed", time.Since(start))
	return &doc, nil
}

func (p *Pipeline) rasterize(ctx context.Context, data []byte, mediaType string) ([]result.Page, error) {
	rctx, cancel := context.WithTimeout(ctx, p.cfg.RasterTimeout)
	defer cancel()
	pages, err := p.raster.Rasterize(rctx, result.Document{Data: data, MediaType: mediaType})
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return nil, ocrerr.Wrap(ocrerr.DocumentFailed, err, "rasterization timed out after %s", p.cfg.RasterTimeout)
	case err != nil:
		return nil, err
	case len(pages) == 0:
		return nil, ocrerr.New(ocrerr.CorruptDocument, "document has no pages")
	}
	return pages, nil
}

// pageBounds returns the page size the engines clamped their regions to. It differs
// from the rasterized size only for an empty page, which preparation enlarges.
func pageBounds(page result.Page, prepared map[prep.Requirements]*prep.PreparedPage) (int, int) {
	for _, pp := range prepared {
		return pp.PageWidth, pp.PageHeight
	}
	return page.Width, page.Height
}

// processPage runs every engine on page and merges the results.
func (p *Pipeline) processPage(ctx context.Context, tr *tracker, page result.Page) (result.MergedPage, error) {
	idx := page.Index
	if err := ctx.Err(); err != nil {
		return result.MergedPage{}, err
	}

	prepared := make(map[prep.Requirements]*prep.PreparedPage)
	for _, e := range p.engines {
		req := e.Requirements()
		if _, ok := prepared[req]; !ok {
			prepared[req] = prep.Prepare(page, req)
		}
	}
	if err := tr.advance(idx, Prepared); err != nil {
		return result.MergedPage{}, err
	}

	if err := tr.advance(idx, EnginesRunning); err != nil {
		return result.MergedPage{}, err
	}
	results := make([]result.EngineResult, len(p.engines))
	var wg sync.WaitGroup
	for i, e := range p.engines {
		if ctx.Err() != nil {
			break
		}
		pp := prepared[e.Requirements()]
		i, e := i, e
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i] = engine.Invoke(ctx, e, pp, p.cfg.EngineTimeout)
		})
		if err != nil {
			wg.Done()
			results[i] = result.EngineResult{
				Engine:    e.Name(),
				Kind:      e.Kind(),
				PageIndex: idx,
				Err:       ocrerr.Wrap(ocrerr.EngineUnavailable, err, "not dispatched").AtPage(idx).ForEngine(e.Name()),
			}
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result.MergedPage{}, err
	}

	if err := tr.advance(idx, Merging); err != nil {
		return result.MergedPage{}, err
	}
	w, h := pageBounds(page, prepared)
	mp := Merge(p.cfg.Merge, results, w, h)
	if err := tr.advance(idx, Done); err != nil {
		return result.MergedPage{}, err
	}
	p.logger.Debugw("page merged", "page", idx, "status", mp.Status, "provenance", mp.Provenance, "regions", len(mp.Regions))
	return mp, nil
}
