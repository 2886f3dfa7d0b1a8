package charts

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

func newTestService() *Service {
	return NewService(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestCostSeries(t *testing.T) {
	s := newTestService()
	points := s.CostSeries([]float64{3, 1, 2, 6})
	require.Len(t, points, 4)

	assert.Equal(t, 0, points[0].Iteration)
	assert.Zero(t, points[0].SMA)
	assert.Zero(t, points[1].SMA)
	assert.InDelta(t, 2.0, points[2].SMA, 1e-12)
	assert.InDelta(t, 3.0, points[3].SMA, 1e-12)

	short := s.CostSeries([]float64{1, 2})
	assert.Zero(t, short[1].SMA, "no average before the window fills")
}

func TestTopIndices(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		k      int
		want   map[int]bool
	}{
		{"top four", []float64{0.1, 0.3, 0.05, 0.2, 0.25, 0.1}, 4, map[int]bool{1: true, 3: true, 4: true, 0: true}},
		{"fewer values than k", []float64{0.6, 0.4}, 4, map[int]bool{0: true, 1: true}},
		{"empty", nil, 4, map[int]bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopIndices(tt.values, tt.k))
		})
	}
}

func TestPlotsRenderPNG(t *testing.T) {
	s := newTestService()

	costPlot, err := s.CostPlot([]float64{-1.2, -2.5, -2.1, -3.0, -2.9})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, s.WritePNG(&buf, costPlot, 4*vg.Inch, 3*vg.Inch))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)

	distPlot, err := s.DistributionPlot(map[string]float64{"10010": 0.4, "01101": 0.35, "00000": 0.05, "11111": 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Result Distribution", distPlot.Title.Text)
	buf.Reset()
	require.NoError(t, s.WritePNG(&buf, distPlot, 4*vg.Inch, 3*vg.Inch))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)

	_, err = s.CostPlot(nil)
	assert.Error(t, err)
	_, err = s.DistributionPlot(nil)
	assert.Error(t, err)
}

func TestSaveReportPlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	paths, err := newTestService().SaveReportPlots(dir, []float64{1, 0.5}, map[string]float64{"01": 1})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Equal(t, filepath.Join(dir, CostFile), paths[0])
}
