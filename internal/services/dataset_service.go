package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pulse/internal/cache"
	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/sources"
)

const defaultWarmConcurrency = 4

// DatasetService is a read-through cache of source tables keyed by file name.
// A table is read from the source once and reused until invalidated or
// expired; concurrent first reads of the same file share one source read.
// A read that started before an invalidation is never shared with later
// callers nor written back to the cache.
type DatasetService struct {
	reader sources.TableReader
	cache  *cache.LRUCache[core.Table]
	group  singleflight.Group
	gens   generations
	logger *log.Logger
	sl     *log.StructuredLogger

	warmConcurrency int
	reads           atomic.Int64
}

// WarmReport lists the outcome of a Warm call.
type WarmReport struct {
	Loaded []string
	Failed map[string]error
}

// generations stamps each file with the counter value of its latest
// invalidation. A file's generation is the larger of its own stamp and the
// stamp of the last InvalidateAll.
type generations struct {
	mu    sync.Mutex
	next  uint64
	all   uint64
	files map[string]uint64
}

func (g *generations) current(file string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return max(g.all, g.files[file])
}

func (g *generations) bump(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	if g.files == nil {
		g.files = map[string]uint64{}
	}
	g.files[file] = g.next
}

func (g *generations) bumpAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.all = g.next
	clear(g.files)
}

// storeIf runs store while file is still at generation gen.
func (g *generations) storeIf(file string, gen uint64, store func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if max(g.all, g.files[file]) != gen {
		return false
	}
	store()
	return true
}

// OK reports whether every file loaded.
func (r WarmReport) OK() bool { return len(r.Failed) == 0 }

func NewDatasetService(reader sources.TableReader, tables *cache.LRUCache[core.Table], logger *log.Logger) *DatasetService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if tables == nil {
		tables = cache.NewLRUCache[core.Table](len(core.Files()), 0)
	}
	logger = logger.WithComponent(log.ComponentDataset)
	return &DatasetService{
		reader:          reader,
		cache:           tables,
		logger:          logger,
		sl:              log.NewStructuredLogger(logger),
		warmConcurrency: defaultWarmConcurrency,
	}
}

// Load returns the table for file, reading the source only on a cache miss.
func (s *DatasetService) Load(ctx context.Context, file string) (core.Table, error) {
	if t, ok := s.cache.Get(file); ok {
		return t, nil
	}

	gen := s.gens.current(file)
	key := file + "@" + strconv.FormatUint(gen, 10)
	ch := s.group.DoChan(key, func() (any, error) {
		if t, ok := s.cache.Get(file); ok {
			return t, nil
		}
		// The shared read must not be cut short by the first caller leaving.
		return s.read(context.WithoutCancel(ctx), file, gen)
	})

	select {
	case <-ctx.Done():
		return core.Table{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Table{}, res.Err
		}
		return res.Val.(core.Table), nil
	}
}

func (s *DatasetService) read(ctx context.Context, file string, gen uint64) (core.Table, error) {
	start := time.Now()
	s.reads.Add(1)
	t, err := s.reader.ReadTable(ctx, file)
	if err != nil {
		return core.Table{}, fmt.Errorf("load %s: %w", file, err)
	}
	if !s.gens.storeIf(file, gen, func() { s.cache.Set(file, t) }) {
		s.logger.DebugContext(ctx, "Dataset invalidated during load, not cached", log.FieldFile, file)
		return t, nil
	}
	s.sl.LogDatasetLoaded(ctx, file, t.Len(), time.Since(start).Milliseconds())
	return t, nil
}

// LoadDataset resolves a catalog key (id, label or file) and loads its table.
func (s *DatasetService) LoadDataset(ctx context.Context, key string) (core.Dataset, core.Table, error) {
	d, err := core.LookupDataset(key)
	if err != nil {
		return core.Dataset{}, core.Table{}, fmt.Errorf("dataset %q: %w", key, err)
	}
	t, err := s.Load(ctx, d.File)
	if err != nil {
		return d, core.Table{}, err
	}
	return d, t, nil
}

// Warm preloads files in parallel. A failing file is reported and does not
// stop the others.
func (s *DatasetService) Warm(ctx context.Context, files []string) WarmReport {
	var (
		mu     sync.Mutex
		report = WarmReport{Failed: map[string]error{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.warmConcurrency)
	for _, file := range files {
		g.Go(func() error {
			_, err := s.Load(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[file] = err
				return nil
			}
			report.Loaded = append(report.Loaded, file)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Loaded)
	for file, err := range report.Failed {
		s.logger.WarnContext(ctx, "Dataset warm-up failed", log.FieldFile, file, log.FieldError, err)
	}
	s.logger.InfoContext(ctx, "Dataset cache warmed",
		log.FieldOperation, log.OpWarm,
		"loaded", len(report.Loaded),
		"failed", len(report.Failed))
	return report
}

// WarmAll preloads every catalog file.
func (s *DatasetService) WarmAll(ctx context.Context) WarmReport {
	return s.Warm(ctx, core.Files())
}

// Invalidate drops a cached file so the next Load reads the source again.
func (s *DatasetService) Invalidate(file string) {
	s.gens.bump(file)
	s.cache.Delete(file)
	s.logger.Info("Dataset invalidated", log.FieldOperation, log.OpInvalidate, log.FieldFile, file)
}

// InvalidateAll empties the cache and returns the number of dropped tables.
func (s *DatasetService) InvalidateAll() int {
	s.gens.bumpAll()
	n := s.cache.Purge()
	s.logger.Info("Dataset cache cleared", log.FieldOperation, log.OpInvalidate, "dropped", n)
	return n
}

// Cached returns the cached file names, most recently used first.
func (s *DatasetService) Cached() []string {
	return s.cache.Keys()
}

// SourceReads returns how many times the source was read.
func (s *DatasetService) SourceReads() int64 {
	return s.reads.Load()
}

// Ping checks the source when it supports it.
func (s *DatasetService) Ping(ctx context.Context) error {
	p, ok := s.reader.(sources.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// IsNotFound reports errors that should surface as "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrDatasetNotFound) || errors.Is(err, core.ErrEmptyDatasetID)
}
