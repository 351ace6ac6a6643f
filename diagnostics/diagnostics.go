// Package diagnostics renders the system-status snapshots the original
// prints to the console (print_system_status, print_task_info,
// print_arbitrator_info) as structured data, exposing them as TOML for
// operators and over a small chi HTTP surface, plus a CloudEvents
// exporter for component state-change telemetry.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/go-chi/chi/v5"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// Snapshot is a point-in-time rendering of process state.
type Snapshot struct {
	GeneratedAt time.Time `toml:"generated_at"`
	QueueSize   int       `toml:"queue_size"`
	Tasks       []string  `toml:"tasks"`
	Components  []string  `toml:"components"`
	Macros      []string  `toml:"macros"`
}

// Source supplies the live values a Snapshot is built from.
type Source struct {
	Registry  *component.Registry
	QueueSize func() int
	Tasks     func() []string
	Macros    func() []string
}

// Build assembles a Snapshot from src.
func Build(src Source) Snapshot {
	s := Snapshot{GeneratedAt: time.Now()}
	if src.QueueSize != nil {
		s.QueueSize = src.QueueSize()
	}
	if src.Tasks != nil {
		s.Tasks = src.Tasks()
	}
	if src.Registry != nil {
		s.Components = src.Registry.Snapshot()
	}
	if src.Macros != nil {
		s.Macros = src.Macros()
	}
	return s
}

// TOML renders the snapshot as a TOML document, the format operators
// pull down for a human-readable system-status dump.
func (s Snapshot) TOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Server exposes /status, /registry and /macros over a minimal chi
// router, for local operator inspection.
type Server struct {
	src Source
	log logging.Logger
}

// NewServer builds the chi handler. Call ListenAndServe on the result
// of Handler() to actually serve.
func NewServer(src Source, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	return &Server{src: src, log: log}
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/registry", s.handleRegistry)
	r.Get("/macros", s.handleMacros)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := Build(s.src)
	w.Header().Set("Content-Type", "application/toml")
	body, err := snap.TOML()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte(body))
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	snap := Build(s.src)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap.Components)
}

func (s *Server) handleMacros(w http.ResponseWriter, r *http.Request) {
	snap := Build(s.src)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap.Macros)
}

// Exporter wraps component state-change and macro-completion telemetry
// as CloudEvents and hands them to a sender function, so an external
// collector can be wired in without this package depending on a
// specific transport.
type Exporter struct {
	source string
	send   func(ctx context.Context, ev cloudevents.Event) error
	log    logging.Logger
}

// NewExporter constructs an Exporter. send is typically a
// cloudevents.Client.Send bound to an HTTP or Kafka target; nil is
// accepted and turns every Emit into a no-op, useful when no collector
// is configured.
func NewExporter(source string, send func(ctx context.Context, ev cloudevents.Event) error, log logging.Logger) *Exporter {
	if log == nil {
		log = logging.Nop{}
	}
	return &Exporter{source: source, send: send, log: log}
}

// Emit wraps data as a CloudEvent of the given type and hands it to the
// configured sender, logging (not failing) on error since telemetry
// delivery is never allowed to affect control-loop behavior.
func (e *Exporter) Emit(ctx context.Context, eventType string, data any) {
	if e.send == nil {
		return
	}
	ev := cloudevents.NewEvent()
	ev.SetSource(e.source)
	ev.SetType(eventType)
	ev.SetTime(time.Now())
	if err := ev.SetData(cloudevents.ApplicationJSON, data); err != nil {
		e.log.Warn("failed to encode telemetry event", "type", eventType, "error", err)
		return
	}
	if err := e.send(ctx, ev); err != nil {
		e.log.Warn("failed to emit telemetry event", "type", eventType, "error", err)
	}
}
