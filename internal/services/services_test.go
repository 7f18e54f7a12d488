package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/cache"
	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/recipes"
	"pulse/internal/sources"
)

// fakeReader serves CSV bodies from memory and counts reads per file.
type fakeReader struct {
	mu     sync.Mutex
	bodies map[string]string
	reads  map[string]int
	delay  time.Duration
	total  atomic.Int64
}

func newFakeReader(bodies map[string]string) *fakeReader {
	return &fakeReader{bodies: bodies, reads: map[string]int{}}
}

func (f *fakeReader) ReadTable(ctx context.Context, file string) (core.Table, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.reads[file]++
	body, ok := f.bodies[file]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if !ok {
		return core.Table{}, fmt.Errorf("%w: %s", sources.ErrSourceNotFound, file)
	}
	return core.ReadCSV(file, strings.NewReader(body))
}

func (f *fakeReader) setBody(file, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[file] = body
}

func (f *fakeReader) readsOf(file string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[file]
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

const (
	aggUserBody  = "State,Year,Quarter,Brand,UserCount\nGoa,2022,1,Xiaomi,10\nGoa,2022,1,Vivo,30\nKerala,2022,1,Xiaomi,25\n"
	aggTransBody = "State,Year,Quarter,Transaction_type,Transaction_count,Transaction_amount\n" +
		"Goa,2022,1,P2P,4,400\nGoa,2022,2,P2P,1,50\nKerala,2023,1,Recharge,2,900\n"
)

func newDatasets(reader sources.TableReader) *DatasetService {
	return NewDatasetService(reader, cache.NewLRUCache[core.Table](16, 0), quietLogger())
}

func TestDatasetService_LoadOnce(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_user.csv": aggUserBody})
	svc := newDatasets(reader)
	ctx := context.Background()

	first, err := svc.Load(ctx, "agg_user.csv")
	require.NoError(t, err)
	second, err := svc.Load(ctx, "agg_user.csv")
	require.NoError(t, err)

	assert.Equal(t, first.Records(), second.Records())
	assert.Equal(t, 1, reader.readsOf("agg_user.csv"))
	assert.Equal(t, int64(1), svc.SourceReads())
	assert.Equal(t, []string{"agg_user.csv"}, svc.Cached())
}

func TestDatasetService_ConcurrentFirstLoadsCollapse(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_user.csv": aggUserBody})
	reader.delay = 50 * time.Millisecond
	svc := newDatasets(reader)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Load(context.Background(), "agg_user.csv")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reader.readsOf("agg_user.csv"))
}

func TestDatasetService_InvalidateReloads(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_user.csv": aggUserBody})
	svc := newDatasets(reader)
	ctx := context.Background()

	_, err := svc.Load(ctx, "agg_user.csv")
	require.NoError(t, err)

	reader.setBody("agg_user.csv", "State,UserCount\nGoa,1\n")
	svc.Invalidate("agg_user.csv")

	t2, err := svc.Load(ctx, "agg_user.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "UserCount"}, t2.Columns())
	assert.Equal(t, 2, reader.readsOf("agg_user.csv"))

	assert.Equal(t, 1, svc.InvalidateAll())
	assert.Empty(t, svc.Cached())
}

// gatedReader serves a one-row table stamped with the current version. The
// first read blocks until release is closed.
type gatedReader struct {
	mu      sync.Mutex
	version int
	reads   int
	started chan struct{}
	release chan struct{}
}

func newGatedReader() *gatedReader {
	return &gatedReader{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReader) ReadTable(ctx context.Context, file string) (core.Table, error) {
	g.mu.Lock()
	g.reads++
	n, v := g.reads, g.version
	g.mu.Unlock()
	if n == 1 {
		close(g.started)
		<-g.release
	}
	return core.ReadCSV(file, strings.NewReader(fmt.Sprintf("State,Version\nGoa,%d\n", v)))
}

func (g *gatedReader) bump() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.version++
}

func TestDatasetService_InvalidateDuringLoad(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(*DatasetService)
	}{
		{"single file", func(s *DatasetService) { s.Invalidate("agg_user.csv") }},
		{"all files", func(s *DatasetService) { s.InvalidateAll() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newGatedReader()
			svc := newDatasets(reader)
			ctx := context.Background()

			first := make(chan core.Table, 1)
			go func() {
				tbl, err := svc.Load(ctx, "agg_user.csv")
				assert.NoError(t, err)
				first <- tbl
			}()
			<-reader.started

			reader.bump()
			tt.invalidate(svc)
			report := svc.Warm(ctx, []string{"agg_user.csv"})
			require.True(t, report.OK(), "warm: %v", report.Failed)

			close(reader.release)
			assert.Equal(t, []string{"0"}, (<-first).Strings("Version"), "the early caller gets what it asked for")

			tbl, err := svc.Load(ctx, "agg_user.csv")
			require.NoError(t, err)
			assert.Equal(t, []string{"1"}, tbl.Strings("Version"), "refreshed table stays cached")
			assert.Equal(t, int64(2), svc.SourceReads())
		})
	}
}

func TestDatasetService_FailuresAreNotCached(t *testing.T) {
	reader := newFakeReader(map[string]string{})
	svc := newDatasets(reader)
	ctx := context.Background()

	_, err := svc.Load(ctx, "map_user.csv")
	require.ErrorIs(t, err, sources.ErrSourceNotFound)

	reader.setBody("map_user.csv", "State,Registered_users,App_opens\nGoa,1,2\n")
	tbl, err := svc.Load(ctx, "map_user.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestDatasetService_WarmReportsPerFile(t *testing.T) {
	reader := newFakeReader(map[string]string{
		"agg_user.csv":  aggUserBody,
		"agg_trans.csv": aggTransBody,
	})
	svc := newDatasets(reader)

	report := svc.Warm(context.Background(), []string{"agg_user.csv", "missing.csv", "agg_trans.csv"})

	assert.False(t, report.OK())
	assert.Equal(t, []string{"agg_trans.csv", "agg_user.csv"}, report.Loaded)
	require.Contains(t, report.Failed, "missing.csv")
	assert.ErrorIs(t, report.Failed["missing.csv"], sources.ErrSourceNotFound)

	_, err := svc.Load(context.Background(), "agg_trans.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, reader.readsOf("agg_trans.csv"))
}

func TestDatasetService_WarmAllLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "text", Output: &buf})
	reader := newFakeReader(map[string]string{"agg_user.csv": aggUserBody})
	svc := NewDatasetService(reader, cache.NewLRUCache[core.Table](16, 0), logger)

	report := svc.WarmAll(context.Background())

	assert.Equal(t, []string{"agg_user.csv"}, report.Loaded)
	assert.Len(t, report.Failed, len(core.Files())-1)
	assert.Equal(t, 1, strings.Count(buf.String(), "Dataset cache warmed"))
	assert.Equal(t, len(report.Failed), strings.Count(buf.String(), "Dataset warm-up failed"))
}

func TestDatasetService_LoadDatasetUnknown(t *testing.T) {
	svc := newDatasets(newFakeReader(nil))
	_, _, err := svc.LoadDataset(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestViewService_Render(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_user.csv": aggUserBody})
	views := NewViewService(newDatasets(reader), recipes.Default(), quietLogger())

	res, err := views.Render(context.Background(), string(recipes.ViewUsersByState))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Goa", "40"}, {"Kerala", "25"}}, res.Rows)

	// Second view on the same file reuses the cached table.
	grid, err := views.Render(context.Background(), string(recipes.ViewTopBrands))
	require.NoError(t, err)
	assert.Equal(t, "Vivo", grid.Data.(recipes.BrandGrid).Cell("Goa", "1").Brand)
	assert.Equal(t, 1, reader.readsOf("agg_user.csv"))
}

func TestViewService_ErrorsStayLocal(t *testing.T) {
	reader := newFakeReader(map[string]string{
		"agg_user.csv":  aggUserBody,
		"agg_trans.csv": "State,Year\nGoa,2022\n",
	})
	views := NewViewService(newDatasets(reader), nil, quietLogger())
	ctx := context.Background()

	_, err := views.Render(ctx, "no-such-view")
	assert.ErrorIs(t, err, recipes.ErrViewNotFound)

	_, err = views.Render(ctx, string(recipes.ViewStatesByAmount))
	assert.True(t, core.IsSchemaError(err), "got %v", err)

	_, err = views.Render(ctx, string(recipes.ViewAppOpens))
	assert.True(t, sources.IsSourceError(err), "got %v", err)

	_, err = views.Render(ctx, string(recipes.ViewUsersByState))
	assert.NoError(t, err, "healthy views keep working")

	assert.Len(t, views.Views(), 7)
}

func TestExplorerService_Explore(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_trans.csv": aggTransBody})
	explorer := NewExplorerService(newDatasets(reader))
	ctx := context.Background()

	ex, err := explorer.Explore(ctx, "Aggregated Transactions", nil, 2)
	require.NoError(t, err)
	assert.True(t, ex.Matched)
	assert.Equal(t, ex.Table.Records(), ex.Filtered.Records())
	assert.Equal(t, 2, ex.Preview.Len())
	assert.True(t, ex.Truncated())

	ex, err = explorer.Explore(ctx, "agg-trans", []core.Constraint{
		{Column: "State", Values: []string{"Goa"}},
		{Column: "Quarter", Values: []string{"2"}},
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Goa", "2022", "2", "P2P", "1", "50"}}, ex.Filtered.Rows())
	assert.Equal(t, []string{"Goa", "Kerala"}, ex.Distinct["State"])
	assert.Equal(t, []string{"1", "2"}, ex.Distinct["Quarter"], "values after the State filter")
	assert.True(t, ex.Selected("State", "Goa"))
	assert.False(t, ex.Selected("State", "Kerala"))
}

func TestExplorerService_PreselectsFirstValues(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_trans.csv": aggTransBody})
	explorer := NewExplorerService(newDatasets(reader))
	ctx := context.Background()

	ex, err := explorer.Explore(ctx, "agg-trans", []core.Constraint{{Column: "Year"}}, 10)
	require.NoError(t, err)
	require.Len(t, ex.Constraints, 1)
	assert.Equal(t, []string{"2022", "2023"}, ex.Constraints[0].Values)
	assert.Equal(t, 3, ex.Filtered.Len())

	ex, err = explorer.Explore(ctx, "agg-trans", []core.Constraint{{Column: "Year", Values: []string{}}}, 10)
	require.NoError(t, err)
	assert.Empty(t, ex.Constraints[0].Values, "explicitly empty selection stays empty")
	assert.Equal(t, 3, ex.Filtered.Len())
	assert.False(t, ex.Selected("Year", "2022"))
}

func TestExplorerService_NoMatch(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_trans.csv": aggTransBody})
	explorer := NewExplorerService(newDatasets(reader))

	ex, err := explorer.Explore(context.Background(), "agg-trans", []core.Constraint{
		{Column: "State", Values: []string{"Kerala"}},
		{Column: "Year", Values: []string{"2022"}},
	}, 10)
	require.NoError(t, err)
	assert.False(t, ex.Matched)
	assert.True(t, ex.Filtered.Empty())
}

func TestHeaderOnlySources(t *testing.T) {
	bodies := map[string]string{}
	for _, rc := range recipes.Default().All() {
		bodies[rc.Dataset] = strings.Join(rc.Required, ",") + "\n"
	}
	bodies["agg_trans.csv"] = "State,Year,Quarter,Transaction_type,Transaction_count,Transaction_amount\n"
	datasets := newDatasets(newFakeReader(bodies))
	ctx := context.Background()

	views := NewViewService(datasets, nil, quietLogger())
	for _, rc := range views.Views() {
		res, err := views.Render(ctx, string(rc.ID))
		require.NoError(t, err, rc.ID)
		assert.True(t, res.Empty(), "%s: got rows %v", rc.ID, res.Rows)
	}

	explorer := NewExplorerService(datasets)
	ex, err := explorer.Explore(ctx, "agg-trans", []core.Constraint{{Column: "State"}}, 10)
	require.NoError(t, err)
	assert.False(t, ex.Matched)
	assert.True(t, ex.Filtered.Empty())
	assert.Empty(t, ex.Distinct["State"])
	assert.Equal(t, 6, len(ex.Columns))
}

func TestExplorerService_Errors(t *testing.T) {
	reader := newFakeReader(map[string]string{"agg_trans.csv": aggTransBody})
	explorer := NewExplorerService(newDatasets(reader))
	ctx := context.Background()

	_, err := explorer.Explore(ctx, "agg-trans", []core.Constraint{{Column: "Pincode"}}, 10)
	assert.True(t, core.IsSchemaError(err))

	_, err = explorer.Explore(ctx, "unknown", nil, 10)
	assert.True(t, errors.Is(err, core.ErrDatasetNotFound))

	_, err = explorer.Explore(ctx, "map-user", nil, 10)
	assert.ErrorIs(t, err, sources.ErrSourceNotFound)

	d, tbl, err := explorer.Export(ctx, "agg-trans", []core.Constraint{{Column: "State", Values: []string{"Kerala"}}})
	require.NoError(t, err)
	assert.Equal(t, "agg_trans.csv", d.File)
	assert.Equal(t, 1, tbl.Len())
}
