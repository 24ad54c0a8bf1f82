// Package metrics records board and command activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the ctfboard collectors. A nil *Recorder records nothing.
type Recorder struct {
	commandsTotal  *prometheus.CounterVec
	publishTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram
	noteSyncTotal  *prometheus.CounterVec
}

// NewRecorder registers the collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctfboard_commands_total",
				Help: "Total number of slash commands handled, by command and status",
			},
			[]string{"command", "status"},
		),
		publishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctfboard_board_publish_total",
				Help: "Board publish attempts by result (sent, edited, unchanged, error)",
			},
			[]string{"result"},
		),
		renderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ctfboard_render_duration_seconds",
				Help:    "Time spent rendering the status board",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		noteSyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctfboard_note_sync_total",
				Help: "Note service calls by operation and status",
			},
			[]string{"op", "status"},
		),
	}
}

// ObserveCommand counts one handled command.
func (r *Recorder) ObserveCommand(command string, err error) {
	if r == nil {
		return
	}
	r.commandsTotal.WithLabelValues(command, status(err)).Inc()
}

// ObservePublish counts one publish attempt.
func (r *Recorder) ObservePublish(result string) {
	if r == nil {
		return
	}
	r.publishTotal.WithLabelValues(result).Inc()
}

// ObserveRender records how long a render took.
func (r *Recorder) ObserveRender(d time.Duration) {
	if r == nil {
		return
	}
	r.renderDuration.Observe(d.Seconds())
}

// ObserveNoteSync counts one note service call.
func (r *Recorder) ObserveNoteSync(op string, err error) {
	if r == nil {
		return
	}
	r.noteSyncTotal.WithLabelValues(op, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
