package charts

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/core"
	"pulse/internal/recipes"
)

func render(t *testing.T, view recipes.ViewID, csv string) recipes.Result {
	t.Helper()
	rc, err := recipes.Default().Lookup(string(view))
	require.NoError(t, err)
	tbl, err := core.ReadCSV(rc.Dataset, strings.NewReader(csv))
	require.NoError(t, err)
	res, err := rc.Run(tbl)
	require.NoError(t, err)
	return res
}

const (
	aggUser = "State,Year,Quarter,Brand,UserCount\n" +
		"Goa,2022,1,Xiaomi,10\nGoa,2022,1,Vivo,30\nGoa,2022,2,Vivo,5\nKerala,2022,1,Xiaomi,25\n"
	aggTrans = "State,Year,Quarter,Transaction_type,Transaction_count,Transaction_amount\n" +
		"Goa,2022,1,P2P,4,400\nGoa,2022,2,P2P,1,50\nKerala,2023,1,Recharge,2,900\n"
	mapUser = "State,Year,Quarter,District,Registered_users,App_opens\n" +
		"Goa,2022,1,North Goa,100,1000\nKerala,2022,1,Kochi,300,500\n"
	topDist = "State,Year,Quarter,District,Transaction_count,Transaction_amount\n" +
		"Goa,2022,1,North Goa,10,1000\nKerala,2022,1,Kochi,20,1000\n"
)

func TestRender_AllViews(t *testing.T) {
	cases := []struct {
		view recipes.ViewID
		csv  string
	}{
		{recipes.ViewUsersByState, aggUser},
		{recipes.ViewTopBrands, aggUser},
		{recipes.ViewStatesByAmount, aggTrans},
		{recipes.ViewYearQuarter, aggTrans},
		{recipes.ViewAppOpens, mapUser},
		{recipes.ViewEfficientDistricts, topDist},
		{recipes.ViewInsuranceDistricts, topDist},
	}
	r := NewRenderer(800, 480)
	for _, tc := range cases {
		t.Run(string(tc.view), func(t *testing.T) {
			res := render(t, tc.view, tc.csv)

			var png bytes.Buffer
			require.NoError(t, r.Render(&png, res, PNG))
			assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")), "png signature")

			var svg bytes.Buffer
			require.NoError(t, r.Render(&svg, res, SVG))
			assert.Contains(t, svg.String(), "<svg")
		})
	}
}

func TestRender_EmptyResult(t *testing.T) {
	r := NewRenderer(0, 0)
	err := r.Render(&bytes.Buffer{}, recipes.Result{View: recipes.ViewUsersByState}, PNG)
	assert.ErrorIs(t, err, ErrNothingToRender)

	res := recipes.Result{
		View: recipes.ViewUsersByState,
		Rows: [][]string{{"Goa", "0"}},
		Data: []recipes.StateUsers{{State: "Goa", UserCount: 0}},
	}
	err = r.Render(&bytes.Buffer{}, res, PNG)
	assert.ErrorIs(t, err, ErrNothingToRender)
}

func TestRender_UnknownFormat(t *testing.T) {
	res := render(t, recipes.ViewUsersByState, aggUser)
	err := NewRenderer(0, 0).Render(&bytes.Buffer{}, res, Format("gif"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".SVG")
	require.NoError(t, err)
	assert.Equal(t, SVG, f)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	assert.Equal(t, "image/png", PNG.ContentType())

	_, err = ParseFormat("jpeg")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestHeatmap(t *testing.T) {
	grid := recipes.BrandGrid{
		States:   []string{"Goa", "Kerala"},
		Quarters: []string{"1", "2"},
		Cells: [][]recipes.BrandCell{
			{{Brand: "Vivo", UserCount: 80, Defined: true}, {}},
			{{Brand: "Xiaomi", UserCount: 0, Defined: true}, {Brand: "Apple", UserCount: 40, Defined: true}},
		},
	}
	view, err := Heatmap(grid)
	require.NoError(t, err)

	assert.Equal(t, 80.0, view.Max)
	assert.Equal(t, "#800026", view.Rows[0][0].Fill, "max cell takes the darkest colour")
	assert.Equal(t, "#ffffcc", view.Rows[1][0].Fill, "zero cell takes the lightest colour")
	assert.Equal(t, "#ffffff", view.Rows[0][0].Ink)
	assert.Equal(t, "#000000", view.Rows[1][0].Ink)
	assert.False(t, view.Rows[0][1].Defined)
	assert.Empty(t, string(view.Rows[0][1].Style()))
	assert.Contains(t, string(view.Rows[1][1].Style()), "background:#")
	assert.Len(t, view.Legend, 5)

	_, err = Heatmap(recipes.BrandGrid{States: []string{"Goa"}, Quarters: []string{"1"}, Cells: [][]recipes.BrandCell{{{}}}})
	assert.ErrorIs(t, err, ErrNothingToRender)
}

func TestSunburstRings(t *testing.T) {
	sb := recipes.Sunburst{Years: []recipes.SunburstYear{
		{Year: "2022", Amount: 300, Count: 3, Quarters: []recipes.SunburstLeaf{
			{Quarter: "1", Amount: 100, Count: 1},
			{Quarter: "2", Amount: 200, Count: 2},
		}},
		{Year: "2023", Amount: 100, Count: 6, Quarters: []recipes.SunburstLeaf{
			{Quarter: "1", Amount: 100, Count: 6},
		}},
	}}
	rings, err := SunburstRings(sb)
	require.NoError(t, err)
	require.Len(t, rings, 2)

	years, quarters := rings[0], rings[1]
	assert.Equal(t, "Year", years.Level)
	assert.InDelta(t, 0.75, years.Segments[0].Share, 1e-9)
	assert.InDelta(t, 0.75, years.Segments[1].Start, 1e-9)

	var total float64
	for _, s := range quarters.Segments {
		total += s.Share
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Equal(t, "2022 Q2", quarters.Segments[1].Label)
	assert.Equal(t, "2022", quarters.Segments[1].Parent)
	assert.InDelta(t, 0.25, quarters.Segments[1].Start, 1e-9)
	assert.Equal(t, "#08306b", years.Segments[1].Fill, "largest count is darkest")
	assert.True(t, strings.HasPrefix(string(years.Gradient()), "conic-gradient(#"))

	_, err = SunburstRings(recipes.Sunburst{})
	assert.ErrorIs(t, err, ErrNothingToRender)
}

func TestScaleAt(t *testing.T) {
	assert.Equal(t, YlOrRd[0], YlOrRd.At(-1))
	assert.Equal(t, YlOrRd[0], YlOrRd.At(math.NaN()))
	assert.Equal(t, YlOrRd[len(YlOrRd)-1], YlOrRd.At(2))
	assert.Equal(t, YlOrRd[4], YlOrRd.At(0.5))
}

func TestBarOutline(t *testing.T) {
	xs, ys := barOutline([]float64{10, math.NaN(), 4}, 0.25)

	assert.Equal(t, []float64{-0.25, -0.25, 0.25, 0.25, 0.75, 0.75, 1.25, 1.25, 1.75, 1.75, 2.25, 2.25}, xs)
	assert.Equal(t, []float64{0, 10, 10, 0, 0, 0, 0, 0, 0, 4, 4, 0}, ys)
}
