// Package charts renders the experiment plots: the cost trace of the optimizer and the
// distribution of sampled bitstrings.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	// TopHighlighted is the number of most probable bitstrings drawn in purple.
	TopHighlighted = 4
	// DefaultSMAWindow is the moving-average window of the cost overlay.
	DefaultSMAWindow = 3

	CostFile         = "cost.png"
	DistributionFile = "distribution.png"
)

var (
	grey   = color.RGBA{R: 127, G: 127, B: 127, A: 255} // tab:grey
	purple = color.RGBA{R: 148, G: 103, B: 189, A: 255} // tab:purple
	blue   = color.RGBA{R: 31, G: 119, B: 180, A: 255}  // tab:blue
	orange = color.RGBA{R: 255, G: 127, B: 14, A: 255}  // tab:orange
)

// ChartDataPoint is one point of the cost chart.
type ChartDataPoint struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
	SMA       float64 `json:"sma,omitempty"` // zero until the window is filled
}

// Service renders plots.
type Service struct {
	smaWindow int
	log       zerolog.Logger
}

// NewService creates a charts service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		smaWindow: DefaultSMAWindow,
		log:       log.With().Str("service", "charts").Logger(),
	}
}

// CostSeries pairs every cost with its simple moving average.
func (s *Service) CostSeries(values []float64) []ChartDataPoint {
	points := make([]ChartDataPoint, len(values))
	var sma []float64
	if len(values) >= s.smaWindow && s.smaWindow > 1 {
		sma = talib.Sma(values, s.smaWindow)
	}
	for i, v := range values {
		points[i] = ChartDataPoint{Iteration: i, Cost: v}
		if sma != nil && i >= s.smaWindow-1 {
			points[i].SMA = sma[i]
		}
	}
	return points
}

// CostPlot draws cost against iteration with a moving-average overlay.
func (s *Service) CostPlot(values []float64) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no cost values to plot")
	}

	p := plot.New()
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Cost"

	series := s.CostSeries(values)
	costXYs := make(plotter.XYs, len(series))
	var smaXYs plotter.XYs
	for i, pt := range series {
		costXYs[i] = plotter.XY{X: float64(pt.Iteration), Y: pt.Cost}
		if i >= s.smaWindow-1 && len(values) >= s.smaWindow {
			smaXYs = append(smaXYs, plotter.XY{X: float64(pt.Iteration), Y: pt.SMA})
		}
	}

	line, err := plotter.NewLine(costXYs)
	if err != nil {
		return nil, fmt.Errorf("failed to build cost line: %w", err)
	}
	line.LineStyle.Color = blue
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("cost", line)

	if len(smaXYs) > 0 {
		avg, err := plotter.NewLine(smaXYs)
		if err != nil {
			return nil, fmt.Errorf("failed to build moving average: %w", err)
		}
		avg.LineStyle.Color = orange
		avg.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(avg)
		p.Legend.Add(fmt.Sprintf("SMA(%d)", s.smaWindow), avg)
	}
	p.Legend.Top = true

	return p, nil
}

// DistributionPlot draws the bitstring distribution, highlighting the most probable
// outcomes.
func (s *Service) DistributionPlot(dist map[string]float64) (*plot.Plot, error) {
	if len(dist) == 0 {
		return nil, fmt.Errorf("no distribution to plot")
	}

	labels := make([]string, 0, len(dist))
	for k := range dist {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	values := make([]float64, len(labels))
	for i, k := range labels {
		values[i] = dist[k]
	}
	highlighted := TopIndices(values, TopHighlighted)

	rest := make(plotter.Values, len(values))
	top := make(plotter.Values, len(values))
	for i, v := range values {
		if highlighted[i] {
			top[i] = v
		} else {
			rest[i] = v
		}
	}

	p := plot.New()
	p.Title.Text = "Result Distribution"
	p.X.Label.Text = "Bitstrings (reversed)"
	p.Y.Label.Text = "Probability"
	p.X.Tick.Label.Rotation = math.Pi / 4

	width := vg.Points(12)
	for _, layer := range []struct {
		values plotter.Values
		color  color.Color
	}{{rest, grey}, {top, purple}} {
		bars, err := plotter.NewBarChart(layer.values, width)
		if err != nil {
			return nil, fmt.Errorf("failed to build bars: %w", err)
		}
		bars.Color = layer.color
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalX(labels...)

	return p, nil
}

// TopIndices marks the k largest values by magnitude; ties go to the earlier index.
func TopIndices(values []float64, k int) map[int]bool {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return math.Abs(values[idx[a]]) > math.Abs(values[idx[b]]) })
	if k > len(idx) {
		k = len(idx)
	}
	out := make(map[int]bool, k)
	for _, i := range idx[:k] {
		out[i] = true
	}
	return out
}

// WritePNG renders p as PNG.
func (s *Service) WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// SaveReportPlots writes cost.png and distribution.png into dir and returns their paths.
func (s *Service) SaveReportPlots(dir string, costs []float64, dist map[string]float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	costPlot, err := s.CostPlot(costs)
	if err != nil {
		return nil, err
	}
	distPlot, err := s.DistributionPlot(dist)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, out := range []struct {
		name          string
		p             *plot.Plot
		width, height vg.Length
	}{
		{CostFile, costPlot, 12 * vg.Inch, 6 * vg.Inch},
		{DistributionFile, distPlot, 11 * vg.Inch, 6 * vg.Inch},
	} {
		path := filepath.Join(dir, out.name)
		if err := out.p.Save(out.width, out.height, path); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", out.name, err)
		}
		paths = append(paths, path)
		s.log.Debug().Str("path", path).Msg("Plot saved")
	}
	return paths, nil
}

// CostPNG renders the cost plot at report size.
func (s *Service) CostPNG(costs []float64) ([]byte, error) {
	p, err := s.CostPlot(costs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.WritePNG(&buf, p, 12*vg.Inch, 6*vg.Inch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DistributionPNG renders the distribution plot at report size.
func (s *Service) DistributionPNG(dist map[string]float64) ([]byte, error) {
	p, err := s.DistributionPlot(dist)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.WritePNG(&buf, p, 11*vg.Inch, 6*vg.Inch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
