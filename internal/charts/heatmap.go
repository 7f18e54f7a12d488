package charts

import (
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"pulse/internal/recipes"
)

const (
	heatTop      = 48
	heatHeader   = 18
	heatMinCellH = 14
	heatMargin   = 10
)

// heatmap draws the brand grid directly on a go-chart renderer: one row per
// state, one column per quarter, cells filled by user count.
func (r *Renderer) heatmap(w io.Writer, title string, grid recipes.BrandGrid, format Format) error {
	view, err := Heatmap(grid)
	if err != nil {
		return err
	}

	height := r.height
	if need := heatTop + heatHeader + heatMinCellH*len(view.States) + heatMargin; need > height {
		height = need
	}
	rend, err := format.provider()(r.width, height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	rend.SetFont(font)

	fillRect(rend, 0, 0, r.width, height, drawing.ColorWhite)

	rend.SetFontColor(drawing.ColorBlack)
	rend.SetFontSize(14)
	rend.Text(title, heatMargin, 24)

	rend.SetFontSize(9)
	labelW := 0
	for _, s := range view.States {
		if bw := rend.MeasureText(s).Width(); bw > labelW {
			labelW = bw
		}
	}
	left := heatMargin + labelW + 8
	cellW := (r.width - left - heatMargin) / max(len(view.Quarters), 1)
	cellH := (height - heatTop - heatHeader - heatMargin) / max(len(view.States), 1)

	rend.SetFontColor(drawing.ColorBlack)
	for j, q := range view.Quarters {
		rend.Text("Q"+q, left+j*cellW+4, heatTop+12)
	}

	for i, row := range view.Rows {
		y := heatTop + heatHeader + i*cellH
		rend.SetFontColor(drawing.ColorBlack)
		rend.Text(view.States[i], heatMargin, y+cellH/2+4)
		for j, cell := range row {
			x := left + j*cellW
			if !cell.Defined {
				continue
			}
			fill := YlOrRd.At(ratio(cell.UserCount, view.Max))
			fillRect(rend, x+1, y+1, x+cellW-1, y+cellH-1, fill)
			rend.SetFontColor(ink(fill))
			rend.Text(fitText(rend, cell.Brand, cellW-6), x+3, y+cellH/2+4)
		}
	}
	return rend.Save(w)
}

func fillRect(rend chart.Renderer, x0, y0, x1, y1 int, c drawing.Color) {
	rend.SetFillColor(c)
	rend.SetStrokeColor(c)
	rend.SetStrokeWidth(0)
	rend.MoveTo(x0, y0)
	rend.LineTo(x1, y0)
	rend.LineTo(x1, y1)
	rend.LineTo(x0, y1)
	rend.Close()
	rend.Fill()
}

// fitText trims s until it fits in width pixels.
func fitText(rend chart.Renderer, s string, width int) string {
	runes := []rune(s)
	for len(runes) > 0 && rend.MeasureText(string(runes)).Width() > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
