package monitor

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/security"
)

const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 5 * vg.Inch
)

var (
	readingColor = color.RGBA{R: 60, G: 110, B: 200, A: 255}
	meanColor    = color.RGBA{R: 80, G: 160, B: 80, A: 255}
	upperColor   = color.RGBA{R: 230, G: 150, B: 30, A: 255}
	stepColor    = color.RGBA{R: 200, G: 40, B: 140, A: 255}
	jumpColor    = color.RGBA{R: 220, G: 30, B: 30, A: 255}
)

// NewTracePlot builds a plot of the rectified signal, the filtered mean,
// the anomaly band and the fired samples.
func NewTracePlot(samples []Sample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Gyro trace"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Rectified rate"
	p.Legend.Top = true

	if len(samples) == 0 {
		return p, nil
	}

	reading := make(plotter.XYs, 0, len(samples))
	mean := make(plotter.XYs, 0, len(samples))
	upper := make(plotter.XYs, 0, len(samples))
	var steps, jumps plotter.XYs
	for _, s := range samples {
		x := float64(s.Index)
		reading = append(reading, plotter.XY{X: x, Y: s.Rectified})
		if s.WarmingUp {
			continue
		}
		mean = append(mean, plotter.XY{X: x, Y: s.Mean})
		upper = append(upper, plotter.XY{X: x, Y: s.Upper})
		switch s.Signal {
		case detector.SignalStep:
			steps = append(steps, plotter.XY{X: x, Y: s.Rectified})
		case detector.SignalJump:
			jumps = append(jumps, plotter.XY{X: x, Y: s.Rectified})
		}
	}

	if err := addLine(p, "rectified", reading, readingColor); err != nil {
		return nil, err
	}
	if err := addLine(p, "mean", mean, meanColor); err != nil {
		return nil, err
	}
	if err := addLine(p, "band", upper, upperColor); err != nil {
		return nil, err
	}
	if err := addMarkers(p, "step", steps, stepColor); err != nil {
		return nil, err
	}
	if err := addMarkers(p, "jump", jumps, jumpColor); err != nil {
		return nil, err
	}
	return p, nil
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("%s line: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func addMarkers(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("%s markers: %w", name, err)
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(sc)
	p.Legend.Add(name, sc)
	return nil
}

// RenderPNG writes the trace plot for samples to w.
func RenderPNG(samples []Sample, w io.Writer) error {
	p, err := NewTracePlot(samples)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// Plotter saves trace snapshots as PNG files under a fixed directory.
type Plotter struct {
	fs  fsutil.FileSystem
	dir string
}

// NewPlotter returns a Plotter writing to dir through fs. A nil fs uses the
// OS filesystem.
func NewPlotter(fs fsutil.FileSystem, dir string) *Plotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Plotter{fs: fs, dir: dir}
}

// Save renders the trace to <dir>/<name>.png and returns the path written.
// name is sanitised before use.
func (p *Plotter) Save(t *Trace, name string) (string, error) {
	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plot directory: %w", err)
	}

	path := filepath.Join(p.dir, security.SanitizeFilename(name)+".png")
	if err := security.ValidatePathWithinDirectory(path, p.dir); err != nil {
		return "", err
	}

	f, err := p.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := RenderPNG(t.Samples(), f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
