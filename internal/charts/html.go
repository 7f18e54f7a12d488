package charts

import (
	"fmt"
	"html/template"
	"strings"

	"pulse/internal/core"
	"pulse/internal/recipes"
)

// HeatCell is one State x Quarter cell of the brand heatmap.
type HeatCell struct {
	State     string  `json:"state"`
	Quarter   string  `json:"quarter"`
	Brand     string  `json:"brand,omitempty"`
	UserCount float64 `json:"user_count"`
	Defined   bool    `json:"defined"`
	Fill      string  `json:"fill,omitempty"`
	Ink       string  `json:"ink,omitempty"`
}

// Style is the inline CSS for the cell; undefined cells stay blank.
func (c HeatCell) Style() template.CSS {
	if !c.Defined {
		return ""
	}
	return template.CSS("background:" + c.Fill + ";color:" + c.Ink)
}

type LegendStop struct {
	Label string `json:"label"`
	Fill  string `json:"fill"`
}

// HeatmapView is the brand grid coloured by user count.
type HeatmapView struct {
	States   []string     `json:"states"`
	Quarters []string     `json:"quarters"`
	Rows     [][]HeatCell `json:"rows"`
	Max      float64      `json:"max"`
	Legend   []LegendStop `json:"legend"`
}

// Heatmap colours every defined cell of grid on the YlOrRd scale relative
// to the largest user count.
func Heatmap(grid recipes.BrandGrid) (HeatmapView, error) {
	top := grid.Max()
	view := HeatmapView{States: grid.States, Quarters: grid.Quarters, Max: top}
	defined := 0
	for i, state := range grid.States {
		row := make([]HeatCell, len(grid.Quarters))
		for j, quarter := range grid.Quarters {
			c := grid.Cells[i][j]
			cell := HeatCell{State: state, Quarter: quarter}
			if c.Defined {
				defined++
				color := YlOrRd.At(ratio(c.UserCount, top))
				cell.Brand, cell.UserCount, cell.Defined = c.Brand, c.UserCount, true
				cell.Fill, cell.Ink = hex(color), hex(ink(color))
			}
			row[j] = cell
		}
		view.Rows = append(view.Rows, row)
	}
	if defined == 0 {
		return HeatmapView{}, ErrNothingToRender
	}
	for _, t := range []float64{0, 0.25, 0.5, 0.75, 1} {
		view.Legend = append(view.Legend, LegendStop{
			Label: core.FormatCompact(t * top),
			Fill:  hex(YlOrRd.At(t)),
		})
	}
	return view, nil
}

// Segment is one arc of a sunburst ring. Start and Share are fractions of
// the full circle, sized by amount.
type Segment struct {
	Label  string  `json:"label"`
	Parent string  `json:"parent,omitempty"`
	Amount float64 `json:"amount"`
	Count  float64 `json:"count"`
	Start  float64 `json:"start"`
	Share  float64 `json:"share"`
	Fill   string  `json:"fill"`
	Ink    string  `json:"ink"`
}

// Ring is one level of the Year -> Quarter hierarchy.
type Ring struct {
	Level    string    `json:"level"`
	Segments []Segment `json:"segments"`
}

// Gradient renders the ring as a CSS conic-gradient.
func (r Ring) Gradient() template.CSS {
	stops := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		stops = append(stops, fmt.Sprintf("%s %.3f%% %.3f%%", s.Fill, s.Start*100, (s.Start+s.Share)*100))
	}
	return template.CSS("conic-gradient(" + strings.Join(stops, ", ") + ")")
}

// SunburstRings lays out the year ring and the quarter ring. Arcs are sized
// by amount and coloured on the Blues scale by count within their ring.
func SunburstRings(sb recipes.Sunburst) ([]Ring, error) {
	total, _ := sb.Total()
	if len(sb.Years) == 0 || total <= 0 {
		return nil, ErrNothingToRender
	}

	var maxYear, maxQuarter float64
	for _, y := range sb.Years {
		maxYear = max(maxYear, y.Count)
		for _, q := range y.Quarters {
			maxQuarter = max(maxQuarter, q.Count)
		}
	}

	years := Ring{Level: "Year"}
	quarters := Ring{Level: "Quarter"}
	var start float64
	for _, y := range sb.Years {
		color := Blues.At(ratio(y.Count, maxYear))
		years.Segments = append(years.Segments, Segment{
			Label:  y.Year,
			Amount: y.Amount,
			Count:  y.Count,
			Start:  start,
			Share:  share(y.Amount, total),
			Fill:   hex(color),
			Ink:    hex(ink(color)),
		})
		qStart := start
		for _, q := range y.Quarters {
			color := Blues.At(ratio(q.Count, maxQuarter))
			s := share(q.Amount, total)
			quarters.Segments = append(quarters.Segments, Segment{
				Label:  QuarterLabel(y.Year, q.Quarter),
				Parent: y.Year,
				Amount: q.Amount,
				Count:  q.Count,
				Start:  qStart,
				Share:  s,
				Fill:   hex(color),
				Ink:    hex(ink(color)),
			})
			qStart += s
		}
		start += share(y.Amount, total)
	}
	return []Ring{years, quarters}, nil
}

// QuarterLabel names a sunburst leaf, e.g. "2022 Q3".
func QuarterLabel(year, quarter string) string {
	return year + " Q" + quarter
}

func share(v, total float64) float64 {
	if total <= 0 || v <= 0 {
		return 0
	}
	return v / total
}
