// Package charts draws view results with go-chart and lays out the
// heatmap and sunburst views for HTML.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"pulse/internal/core"
	"pulse/internal/recipes"
)

var (
	ErrNothingToRender = errors.New("nothing to render")
	ErrUnknownFormat   = errors.New("unknown chart format")
)

// Format is the image encoding of a rendered chart.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

var (
	primaryColor   = drawing.ColorFromHex("1f77b4")
	secondaryColor = drawing.ColorFromHex("ff7f0e")
)

// Renderer draws view results at a fixed canvas size.
type Renderer struct {
	width  int
	height int
}

func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 600
	}
	return &Renderer{width: width, height: height}
}

// Render writes the chart for res to w.
func (r *Renderer) Render(w io.Writer, res recipes.Result, format Format) error {
	if format != PNG && format != SVG {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if res.Empty() {
		return ErrNothingToRender
	}

	var err error
	switch data := res.Data.(type) {
	case []recipes.StateUsers:
		values := make([]chart.Value, len(data))
		for i, d := range data {
			values[i] = chart.Value{Label: d.State, Value: d.UserCount}
		}
		err = r.pie(w, res.Title, values, format)
	case recipes.BrandGrid:
		err = r.heatmap(w, res.Title, data, format)
	case []recipes.StateTransactions:
		labels := make([]string, len(data))
		amounts := make([]float64, len(data))
		counts := make([]float64, len(data))
		for i, d := range data {
			labels[i], amounts[i], counts[i] = d.State, d.Amount, d.Count
		}
		err = r.dualAxis(w, res.Title, labels,
			axisSeries{name: recipes.ColTxnAmount, values: amounts},
			axisSeries{name: recipes.ColTxnCount, values: counts}, format)
	case recipes.Sunburst:
		err = r.sunburstPie(w, res.Title, data, format)
	case []recipes.StateUsage:
		labels := make([]string, len(data))
		opens := make([]float64, len(data))
		registered := make([]float64, len(data))
		for i, d := range data {
			labels[i], opens[i], registered[i] = d.State, d.AppOpens, d.RegisteredUsers
		}
		err = r.dualAxis(w, res.Title, labels,
			axisSeries{name: recipes.ColAppOpens, values: opens},
			axisSeries{name: recipes.ColRegisteredUsers, values: registered}, format)
	case []recipes.DistrictAverage:
		values := make([]chart.Value, len(data))
		for i, d := range data {
			values[i] = chart.Value{Label: d.District, Value: d.Average}
		}
		err = r.bar(w, res.Title, values, format)
	default:
		return fmt.Errorf("chart %s: unsupported data %T", res.View, res.Data)
	}
	if err != nil {
		return fmt.Errorf("chart %s: %w", res.View, err)
	}
	return nil
}

func (r *Renderer) pie(w io.Writer, title string, values []chart.Value, format Format) error {
	kept := values[:0:0]
	for _, v := range values {
		if v.Value > 0 && !math.IsInf(v.Value, 0) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return ErrNothingToRender
	}
	pc := chart.PieChart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Values: kept,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
	}
	return pc.Render(format.provider(), w)
}

func (r *Renderer) bar(w io.Writer, title string, values []chart.Value, format Format) error {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo, hi = math.Min(lo, v.Value), math.Max(hi, v.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	barWidth := (r.width-120)/len(values) - 10
	if barWidth < 8 {
		barWidth = 8
	}
	bc := chart.BarChart{
		Title:    title,
		Width:    r.width,
		Height:   r.height,
		BarWidth: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 60},
		},
		XAxis: chart.Style{TextRotationDegrees: 30, FontSize: 8},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: lo, Max: hi * 1.1},
			ValueFormatter: compactFormatter,
		},
		Bars: values,
	}
	return bc.Render(format.provider(), w)
}

type axisSeries struct {
	name   string
	values []float64
}

// barHalfWidth is half a bar's width in x units; labels sit one unit apart.
const barHalfWidth = 0.35

// dualAxis plots primary as bars on the left axis and secondary as a dotted
// line on the right axis, one x position per label.
func (r *Renderer) dualAxis(w io.Writer, title string, labels []string, primary, secondary axisSeries, format Format) error {
	n := len(labels)
	xs := make([]float64, n)
	ticks := make([]chart.Tick, n)
	for i, l := range labels {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}
	barXs, barYs := barOutline(primary.values, barHalfWidth)

	ch := chart.Chart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Ticks:     ticks,
			Range:     &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
			TickStyle: chart.Style{TextRotationDegrees: 45, FontSize: 7},
		},
		YAxis: chart.YAxis{
			Name:           primary.name,
			Range:          axisRange(primary.values),
			ValueFormatter: compactFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           secondary.name,
			Range:          axisRange(secondary.values),
			ValueFormatter: compactFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    primary.name,
				XValues: barXs,
				YValues: barYs,
				Style: chart.Style{
					StrokeColor: primaryColor,
					StrokeWidth: 1,
					FillColor:   primaryColor.WithAlpha(160),
				},
			},
			chart.ContinuousSeries{
				Name:    secondary.name,
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				YValues: secondary.values,
				Style: chart.Style{
					StrokeColor: secondaryColor,
					StrokeWidth: 2,
					DotColor:    secondaryColor,
					DotWidth:    3,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(format.provider(), w)
}

// barOutline traces one rectangle per value, centred on its index and
// returning to zero between bars, so a filled series draws them as bars.
// NaN values get no bar.
func barOutline(values []float64, half float64) (xs, ys []float64) {
	xs = make([]float64, 0, 4*len(values))
	ys = make([]float64, 0, 4*len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = 0
		}
		x := float64(i)
		xs = append(xs, x-half, x-half, x+half, x+half)
		ys = append(ys, 0, v, v, 0)
	}
	return xs, ys
}

func axisRange(values []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi * 1.05}
}

// sunburstPie draws the quarter leaves as "Year Qn" slices sized by amount
// and coloured by count.
func (r *Renderer) sunburstPie(w io.Writer, title string, sb recipes.Sunburst, format Format) error {
	rings, err := SunburstRings(sb)
	if err != nil {
		return err
	}
	leaves := rings[len(rings)-1].Segments
	values := make([]chart.Value, 0, len(leaves))
	for _, s := range leaves {
		values = append(values, chart.Value{
			Label: s.Label,
			Value: s.Amount,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(s.Fill, "#")),
				FontColor:   drawing.ColorFromHex(strings.TrimPrefix(s.Ink, "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	return r.pie(w, title, values, format)
}

func compactFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return core.FormatCompact(f)
	}
	return fmt.Sprint(v)
}
