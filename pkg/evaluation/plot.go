package evaluation

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is a named per-epoch series.
type Curve struct {
	Name   string
	Values []float64
}

// PlotCurves renders curves over 1-based epochs as a PNG into w.
func PlotCurves(w io.Writer, title, yLabel string, curves ...Curve) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	var series []interface{}
	for _, c := range curves {
		pts := make(plotter.XYs, len(c.Values))
		for i, v := range c.Values {
			pts[i].X = float64(i + 1)
			pts[i].Y = v
		}
		series = append(series, c.Name, pts)
	}
	if err := plotutil.AddLinePoints(p, series...); err != nil {
		return fmt.Errorf("adding curves: %w", err)
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
