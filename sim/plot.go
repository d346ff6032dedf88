package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewFilterPlot creates a plot of one state coordinate over time from
// three data sources:
// truth:   true trajectory, state variables in rows and times in columns
// measure: observation series, one observation per row
// filter:  filtered state means, one estimate per row
// It returns error if any data source is nil, the coordinate is out of
// range or the gonum plot fails to be created.
func NewFilterPlot(truth, measure, filter *mat.Dense, coord int) (*plot.Plot, error) {
	if truth == nil || measure == nil || filter == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	d, n := truth.Dims()
	if coord < 0 || coord >= d {
		return nil, fmt.Errorf("invalid coordinate: %d", coord)
	}

	p := plot.New()

	p.Title.Text = "Simulation"
	p.X.Label.Text = "time"
	p.Y.Label.Text = fmt.Sprintf("x[%d]", coord)

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	truthLine, err := plotter.NewLine(rowPoints(truth, coord, n))
	if err != nil {
		return nil, err
	}
	truthLine.Color = color.RGBA{B: 255, A: 255}
	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	measureScatter, err := plotter.NewScatter(colPoints(measure, coord))
	if err != nil {
		return nil, err
	}
	measureScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	measureScatter.Shape = draw.PyramidGlyph{}
	measureScatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(measureScatter)
	p.Legend.Add("measurement", measureScatter)

	filterLine, err := plotter.NewLine(colPoints(filter, coord))
	if err != nil {
		return nil, err
	}
	filterLine.Color = color.RGBA{G: 180, A: 255}
	p.Add(filterLine)
	p.Legend.Add("filter", filterLine)

	return p, nil
}

// rowPoints collects coordinate coord of a variables-in-rows matrix as XY
// points indexed by time.
func rowPoints(m *mat.Dense, coord, n int) plotter.XYs {
	pts := make(plotter.XYs, n)
	for k := 0; k < n; k++ {
		pts[k].X = float64(k)
		pts[k].Y = m.At(coord, k)
	}

	return pts
}

// colPoints collects coordinate coord of a samples-in-rows matrix as XY
// points indexed by time.
func colPoints(m *mat.Dense, coord int) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for k := 0; k < r; k++ {
		pts[k].X = float64(k)
		pts[k].Y = m.At(k, coord)
	}

	return pts
}
