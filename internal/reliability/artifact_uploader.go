package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/experiment"
)

// ReportFile is the object name of the JSON summary.
const ReportFile = "report.json"

// ArtifactUploader archives every completed run under runs/<id>/: the JSON summary and
// both report plots.
type ArtifactUploader struct {
	store  ObjectStore
	charts *charts.Service
	bus    *events.Bus
	log    zerolog.Logger
}

// NewArtifactUploader creates an uploader. bus may be nil.
func NewArtifactUploader(store ObjectStore, chartService *charts.Service, bus *events.Bus, log zerolog.Logger) *ArtifactUploader {
	return &ArtifactUploader{
		store:  store,
		charts: chartService,
		bus:    bus,
		log:    log.With().Str("service", "artifact_uploader").Logger(),
	}
}

type artifact struct {
	name        string
	contentType string
	body        []byte
}

// RunPrefix returns the key prefix of a run's artifacts.
func RunPrefix(runID string) string {
	return path.Join("runs", runID) + "/"
}

// Publish uploads the artifacts of report.
func (u *ArtifactUploader) Publish(ctx context.Context, report *experiment.Report) error {
	prefix := RunPrefix(report.RunID)

	summary, err := json.MarshalIndent(report.Summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	objects := []artifact{{ReportFile, "application/json", summary}}

	if report.Trace != nil && report.Trace.Len() > 0 {
		png, err := u.charts.CostPNG(report.Trace.Values)
		if err != nil {
			return err
		}
		objects = append(objects, artifact{charts.CostFile, "image/png", png})
	}
	if len(report.BinaryDistribution) > 0 {
		png, err := u.charts.DistributionPNG(report.BinaryDistribution)
		if err != nil {
			return err
		}
		objects = append(objects, artifact{charts.DistributionFile, "image/png", png})
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		key := prefix + obj.name
		if err := u.store.Upload(ctx, key, bytes.NewReader(obj.body), obj.contentType); err != nil {
			return err
		}
		keys = append(keys, key)
	}

	u.bus.Emit("reliability", &events.ArtifactsUploadedData{RunID: report.RunID, Keys: keys})
	u.log.Info().Str("run_id", report.RunID).Strs("keys", keys).Msg("Run artifacts uploaded")
	return nil
}
