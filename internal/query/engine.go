// Package query computes the MOCs of sky regions, spreading the refinement
// over worker goroutines and memoizing the results.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/healpix-moc/internal/cache/querycache"
	"github.com/mohammed-shakir/healpix-moc/internal/core/config"
	"github.com/mohammed-shakir/healpix-moc/internal/logger"
	"github.com/mohammed-shakir/healpix-moc/internal/metrics"
	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

var ErrNilRegion = errors.New("nil region")

type Engine struct {
	cfg     config.Config
	workers int
	cache   *querycache.Cache
	metrics *metrics.Collectors
	log     *zerolog.Logger
}

// New builds an engine from cfg. m and log may be nil.
func New(cfg config.Config, m *metrics.Collectors, log *zerolog.Logger) (*Engine, error) {
	if cfg.DepthMin > cfg.DepthMax || cfg.DepthMax > healpix.MaxDepth {
		return nil, fmt.Errorf("%w: depth bounds [%d, %d]", healpix.ErrInvalidDepth, cfg.DepthMin, cfg.DepthMax)
	}
	c, err := querycache.New(cfg.QueryCacheSize, cfg.KeyPrefix, m)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		workers: max(cfg.QueryWorkers, 1),
		cache:   c,
		metrics: m,
		log:     log,
	}, nil
}

// Cone returns the MOC of the cone of the given center and radius.
func (e *Engine) Cone(ctx context.Context, lon, lat, radius float64, depth uint8) (*moc.MOC, error) {
	c, err := healpix.NewCone(lon, lat, radius)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, c, depth)
}

// Polygon returns the MOC of the polygon whose interior lies to the left
// of its edges.
func (e *Engine) Polygon(ctx context.Context, vertices []healpix.LonLat, depth uint8) (*moc.MOC, error) {
	p, err := healpix.NewPolygon(vertices)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, p, depth)
}

func (e *Engine) Zone(ctx context.Context, lonMin, latMin, lonMax, latMax float64, depth uint8) (*moc.MOC, error) {
	z, err := healpix.NewZone(lonMin, latMin, lonMax, latMax)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, z, depth)
}

// Query returns the MOC, at the given depth, of the cells intersecting r.
// A cached MOC is returned when the same region was queried before.
func (e *Engine) Query(ctx context.Context, r healpix.Region, depth uint8) (*moc.MOC, error) {
	if r == nil {
		return nil, ErrNilRegion
	}
	desc := r.String()
	kind := kindOf(desc)

	if logger.QueryID(ctx) == "" {
		ctx = logger.WithQueryID(ctx, "")
	}
	ctx = logger.WithRegion(logger.WithComponent(ctx, "query"), desc)
	log := logger.FromContext(ctx, e.log)

	if depth < e.cfg.DepthMin || depth > e.cfg.DepthMax {
		e.metrics.ObserveQuery(kind, metrics.OutcomeError, 0, 0)
		return nil, fmt.Errorf("%w: %d outside [%d, %d]", healpix.ErrInvalidDepth, depth, e.cfg.DepthMin, e.cfg.DepthMax)
	}

	if m, ok := e.cache.Get(desc, depth); ok {
		e.metrics.ObserveQuery(kind, metrics.OutcomeCached, 0, m.Len())
		log.Debug().Uint8("depth", depth).Int("cells", m.Len()).Msg("query cache hit")
		return m, nil
	}

	log.Debug().Uint8("depth", depth).Int("workers", e.workers).Msg("query start")
	start := time.Now()

	cells, err := e.cover(ctx, r, depth)
	var m *moc.MOC
	if err == nil {
		m, err = moc.FromCells(depth, cells)
	}
	took := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			outcome = metrics.OutcomeCanceled
		}
		e.metrics.ObserveQuery(kind, outcome, took, 0)
		log.Warn().Err(err).Uint8("depth", depth).Dur("took", took).Str("outcome", outcome).Msg("query failed")
		return nil, err
	}

	e.cache.Add(desc, depth, m)
	e.metrics.ObserveQuery(kind, metrics.OutcomeOK, took, m.Len())
	log.Info().
		Uint8("depth", depth).
		Int("raw_cells", len(cells)).
		Int("cells", m.Len()).
		Float64("sky_fraction", m.SkyFraction()).
		Dur("took", took).
		Msg("query done")
	return m, nil
}

// cover runs the coverage of r below each split root on the worker pool
// and concatenates the parts in root order, which keeps the z-order.
func (e *Engine) cover(ctx context.Context, r healpix.Region, depth uint8) ([]healpix.Cell, error) {
	roots := splitRoots(depth)
	parts := make([][]healpix.Cell, len(roots))
	errs := make([]error, len(roots))

	jobs := make(chan int)
	workerN := min(e.workers, len(roots))

	var wg sync.WaitGroup
	wg.Add(workerN)
	for range workerN {
		go func() {
			defer wg.Done()
			for k := range jobs {
				if ctx.Err() != nil {
					return
				}
				parts[k], errs[k] = healpix.CoverageFrom(r, depth, roots[k:k+1])
			}
		}()
	}

feed:
	for k := range roots {
		select {
		case jobs <- k:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("coverage of %s: %w", r, err)
	}
	n := 0
	for k, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("coverage of %s: %w", r, err)
		}
		n += len(parts[k])
	}
	out := make([]healpix.Cell, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// splitRoots returns the 48 cells of depth 1, or the base cells for a
// depth 0 query.
func splitRoots(depth uint8) []healpix.Cell {
	if depth == 0 {
		return healpix.BaseCells()
	}
	roots := make([]healpix.Cell, 0, 4*healpix.NBaseCells)
	for _, b := range healpix.BaseCells() {
		children, _ := b.Children(1)
		roots = append(roots, children...)
	}
	return roots
}

// kindOf extracts the region kind from its description, e.g. "cone".
func kindOf(desc string) string {
	if i := strings.IndexByte(desc, '('); i > 0 {
		return desc[:i]
	}
	return "unknown"
}
