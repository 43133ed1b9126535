package coordinator

import (
	"time"

	"github.com/conneroisu/specto/internal/errors"
)

// Status is a point-in-time view of the pipeline for the status API.
type Status struct {
	State          string       `json:"state"`
	LastBuild      *BuildStatus `json:"last_build,omitempty"`
	Builds         BuildCounts  `json:"builds"`
	PendingReloads int          `json:"pending_reloads"`
	ReloadCycles   uint64       `json:"reload_cycles"`
}

// BuildStatus describes the most recent completed build.
type BuildStatus struct {
	Success    bool                  `json:"success"`
	Artifact   string                `json:"artifact,omitempty"`
	DurationMs int64                 `json:"duration_ms"`
	FinishedAt time.Time             `json:"finished_at"`
	Output     string                `json:"output,omitempty"`
	Errors     []*errors.ParsedError `json:"errors,omitempty"`
}

// BuildCounts summarizes build metrics.
type BuildCounts struct {
	Total             int64   `json:"total"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	Coalesced         int64   `json:"coalesced"`
	AverageDurationMs int64   `json:"average_duration_ms"`
	SuccessRate       float64 `json:"success_rate"`
}

// Status returns a snapshot of the pipeline state.
func (c *Coordinator) Status() Status {
	metrics := c.serializer.Metrics()
	snapshot := metrics.Snapshot()

	status := Status{
		State: c.State().String(),
		Builds: BuildCounts{
			Total:             snapshot.TotalBuilds,
			Succeeded:         snapshot.SuccessfulBuilds,
			Failed:            snapshot.FailedBuilds,
			Coalesced:         snapshot.CoalescedRequests,
			AverageDurationMs: snapshot.AverageDuration.Milliseconds(),
			SuccessRate:       metrics.SuccessRate(),
		},
		PendingReloads: c.opts.Hub.Pending(),
		ReloadCycles:   c.opts.Hub.Cycles(),
	}

	if last, ok := c.serializer.Last(); ok {
		status.LastBuild = &BuildStatus{
			Success:    last.Success,
			DurationMs: last.Duration.Milliseconds(),
			FinishedAt: last.FinishedAt,
			Errors:     last.Errors,
		}
		if last.Success {
			status.LastBuild.Artifact = last.ArtifactPath
		} else {
			status.LastBuild.Output = last.Output
		}
	}

	return status
}
