package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/boardsync-core/internal/board"
	"github.com/nerrad567/boardsync-core/internal/libsync"
)

// Measurement names.
const (
	MeasurementDiscoveryPass = "discovery_pass"
	MeasurementSyncRun       = "sync_run"
	MeasurementModuleInstall = "module_install"
)

// Sync run outcomes, written as the "outcome" tag.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeIgnored = "ignored"
)

// PointWriter accepts points; *Client satisfies it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Metrics records discovery passes and sync runs as time series.
//
// It implements board.PassObserver and libsync.RunObserver:
//
//	metrics := influxdb.NewMetrics(client)
//	registry.SetObserver(metrics)
//	orchestrator.SetObserver(metrics)
type Metrics struct {
	w PointWriter
}

// NewMetrics returns a recorder writing to w.
func NewMetrics(w PointWriter) *Metrics {
	return &Metrics{w: w}
}

// ObservePass writes one discovery_pass point.
func (m *Metrics) ObservePass(res board.PassResult) {
	m.w.WritePoint(passPoint(res, time.Now()))
}

// ObserveRun writes one sync_run point and one module_install point per
// attempted module.
func (m *Metrics) ObserveRun(rep *libsync.Report, err error) {
	for _, p := range runPoints(rep, err, time.Now()) {
		m.w.WritePoint(p)
	}
}

func passPoint(res board.PassResult, ts time.Time) *write.Point {
	kind := "incremental"
	if res.Full {
		kind = "full"
	}
	errs := 0
	if res.Err != nil {
		errs = 1
	}
	return write.NewPoint(MeasurementDiscoveryPass,
		map[string]string{"kind": kind},
		map[string]interface{}{
			"endpoints":   res.Endpoints,
			"resolved":    res.Resolved,
			"failed":      res.Failed,
			"boards":      res.Boards,
			"duration_ms": res.Duration.Milliseconds(),
			"errors":      errs,
		},
		ts,
	)
}

func runPoints(rep *libsync.Report, err error, ts time.Time) []*write.Point {
	if rep == nil {
		return []*write.Point{write.NewPoint(MeasurementSyncRun,
			map[string]string{"outcome": OutcomeFailed},
			map[string]interface{}{"rows": 0},
			ts,
		)}
	}

	outcome := OutcomeOK
	switch {
	case rep.Ignored:
		outcome = OutcomeIgnored
	case err != nil || len(rep.Failed) > 0:
		outcome = OutcomeFailed
	}

	tags := map[string]string{"outcome": outcome, "mode": string(rep.Mode)}
	if rep.BoardKey != "" {
		tags["board"] = rep.BoardKey
	}
	fields := map[string]interface{}{
		"rows":      len(rep.Rows),
		"pending":   len(rep.Pending()),
		"installed": len(rep.Installed),
		"failed":    len(rep.Failed),
	}
	if !rep.StartedAt.IsZero() && !rep.FinishedAt.IsZero() {
		fields["duration_ms"] = rep.FinishedAt.Sub(rep.StartedAt).Milliseconds()
	}

	points := []*write.Point{write.NewPoint(MeasurementSyncRun, tags, fields, ts)}
	for _, name := range rep.Installed {
		points = append(points, installPoint(rep.BoardKey, name, OutcomeOK, ts))
	}
	for name := range rep.Failed {
		points = append(points, installPoint(rep.BoardKey, name, OutcomeFailed, ts))
	}
	return points
}

func installPoint(boardKey, module, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementModuleInstall,
		map[string]string{"board": boardKey, "module": module, "outcome": outcome},
		map[string]interface{}{"count": 1},
		ts,
	)
}
