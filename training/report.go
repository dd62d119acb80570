package training

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const (
	// MetricsFile is the CML report written next to the working directory.
	MetricsFile = "metrics.txt"
	// PlotFile is the scatter plot logged under plots/.
	PlotFile = "prediction_vs_actual.png"

	maxPlotPoints = 5000
)

// WriteMetrics writes the two CML report lines.
func WriteMetrics(w io.Writer, rmseTrain, rmseTest float64) error {
	_, err := fmt.Fprintf(w, "RMSE on the Train Set: %v\nRMSE on the Test Set: %v\n", rmseTrain, rmseTest)
	return errors.WithStack(err)
}

// writeMetricsFile writes MetricsFile into dir.
func writeMetricsFile(dir string, rmseTrain, rmseTest float64) (string, error) {
	path := filepath.Join(dir, MetricsFile)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if err := WriteMetrics(f, rmseTrain, rmseTest); err != nil {
		f.Close()
		return "", err
	}
	return path, errors.WithStack(f.Close())
}

// SavePlot draws predicted against actual duration for the test split,
// with the identity line as reference. Large splits are thinned by a
// fixed stride.
func SavePlot(path string, yTrue *mat.VecDense, yPred mat.Matrix) error {
	n := yTrue.Len()
	stride := 1
	if n > maxPlotPoints {
		stride = (n + maxPlotPoints - 1) / maxPlotPoints
	}

	pts := make(plotter.XYs, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		pts = append(pts, plotter.XY{X: yTrue.AtVec(i), Y: yPred.At(i, 0)})
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual trip duration (test set)"
	p.X.Label.Text = "actual duration (min)"
	p.Y.Label.Text = "predicted duration (min)"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(scatter)

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(identity, plotter.NewGrid())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrap(err, "save plot")
	}
	return nil
}
