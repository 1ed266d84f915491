package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tarstars/nn_playground/golang/playground/training"
)

//curveMatrix lays the history out as one row per epoch: loss, metric.
func curveMatrix(history training.History) *mat.Dense {
	if history.Len() == 0 {
		return mat.NewDense(1, 2, nil)
	}
	curve := mat.NewDense(history.Len(), 2, nil)
	for epoch := range history.Loss {
		curve.Set(epoch, 0, history.Loss[epoch])
		curve.Set(epoch, 1, history.Metric[epoch])
	}
	return curve
}

func writeNpy(dst string, m *mat.Dense) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return errors.Wrapf(npyio.Write(f, m), "write %s", dst)
}

func curveXYs(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}

func plotLearningCurve(dst string, history training.History) error {
	if history.Len() == 0 {
		return errors.New("empty learning curve")
	}
	p := plot.New()
	p.Title.Text = "learning curve"
	p.X.Label.Text = "epoch"

	loss, err := plotter.NewLine(curveXYs(history.Loss))
	if err != nil {
		return err
	}
	metric, err := plotter.NewLine(curveXYs(history.Metric))
	if err != nil {
		return err
	}
	metric.Color = plotter.DefaultLineStyle.Color
	metric.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(loss, metric, plotter.NewGrid())
	p.Legend.Add("loss", loss)
	p.Legend.Add(history.MetricName, metric)
	return p.Save(6*vg.Inch, 4*vg.Inch, dst)
}
