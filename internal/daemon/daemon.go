package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/natsserver"
	"github.com/voxkey-labs/voxkey/internal/notify"
	"github.com/voxkey-labs/voxkey/internal/protocol"
	"github.com/voxkey-labs/voxkey/internal/record"
	"github.com/voxkey-labs/voxkey/internal/secret"
	"github.com/voxkey-labs/voxkey/internal/stats"
	"github.com/voxkey-labs/voxkey/internal/status"
	"github.com/voxkey-labs/voxkey/internal/store"
	"github.com/voxkey-labs/voxkey/internal/transcribe"
	"github.com/voxkey-labs/voxkey/internal/vocab"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Daemon is the host process: it owns the capture device, the transcription
// call, and the daemon-side ends of the shared store and notifier.
type Daemon struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	ctx         context.Context
	store       *store.Store
	notifier    *notify.Notifier
	recorder    *record.Recorder
	vocab       *vocab.Manager
	stats       *stats.Tracker
	tracker     *status.Tracker
	transcriber *transcribe.Client

	recordingsStarted metric.Int64Counter
	attemptsFinished  metric.Int64Counter
}

func New(cfg config.Config, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		logger: logger,
	}
}

// Start wires all components and blocks until ctx is canceled.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.ctx = ctx

	shutdownTelemetry, metricHandler, err := setupTelemetry(d.cfg, d.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	d.tracerClose = shutdownTelemetry

	busCfg := d.cfg.Bus
	embedded, err := natsserver.Start(busCfg, d.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	st, err := store.Open(ctx, d.cfg.Store, d.logger)
	if err != nil {
		return fmt.Errorf("failed to open shared store: %w", err)
	}
	defer st.Close()
	d.store = st

	// A stale running flag from a crashed daemon must never survive into
	// this process; clear it before any observer can fire.
	if err := st.SetBool(ctx, protocol.KeyAppRunning, false); err != nil {
		return fmt.Errorf("failed to clear running flag: %w", err)
	}

	notifier, err := notify.Connect(busCfg, d.cfg.DaemonName, d.logger)
	if err != nil {
		return fmt.Errorf("failed to connect notifier: %w", err)
	}
	defer notifier.Close()
	d.notifier = notifier

	d.tracker = status.NewTracker()
	d.tracker.Watch(func(s status.Status) {
		d.logger.Info("status changed", slog.String("status", s.String()))
	})
	d.vocab = vocab.NewManager(st)
	d.stats = stats.NewTracker(st)
	d.recorder = record.NewRecorder(d.cfg.Capture, d.logger)
	secrets := secret.NewStore(d.cfg.Transcriber)
	d.transcriber = transcribe.NewClient(d.cfg.Transcriber, secrets, st, d.vocab, d.tracker, notifier, d.logger)

	if err := d.initMetrics(); err != nil {
		d.logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := notifier.Observe(protocol.EventAudioReady, func() {
		d.beginRecording()
	}); err != nil {
		return fmt.Errorf("failed to observe record requests: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealth)
	mux.HandleFunc("/readyz", d.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	mux.HandleFunc("/control/record", d.handleRecord)
	mux.HandleFunc("/control/stop", d.handleStop)
	mux.HandleFunc("/control/status", d.handleStatus)
	mux.HandleFunc("/control/level", d.handleLevel)
	mux.HandleFunc("/control/stats", d.handleStats)
	mux.HandleFunc("/control/intent", d.handleIntent)

	addr := fmt.Sprintf("%s:%d", d.cfg.HTTP.Bind, d.cfg.HTTP.Port)
	d.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	d.ready.Store(true)
	d.logger.Info("daemon started", slog.String("addr", addr))

	<-ctx.Done()
	d.logger.Info("daemon stopping")
	d.ready.Store(false)

	d.recorder.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := st.SetBool(shutdownCtx, protocol.KeyAppRunning, false); err != nil {
		d.logger.Warn("failed to clear running flag on shutdown", slog.String("error", err.Error()))
	}
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	d.wg.Wait()

	if d.tracerClose != nil {
		if err := d.tracerClose(shutdownCtx); err != nil {
			d.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (d *Daemon) initMetrics() error {
	meter := otel.Meter("github.com/voxkey-labs/voxkey/daemon")
	started, err := meter.Int64Counter("voxkey.recordings.started",
		metric.WithDescription("Recording sessions started"))
	if err != nil {
		return err
	}
	finished, err := meter.Int64Counter("voxkey.transcriptions.finished",
		metric.WithDescription("Transcription attempts completed"))
	if err != nil {
		return err
	}
	d.recordingsStarted = started
	d.attemptsFinished = finished
	return nil
}

// beginRecording handles the record intent: the daemon marks itself alive,
// resets the lifecycle, and opens a fresh capture session. Retrying from
// Finished or Error follows the same path and clears the prior text. An
// intent that lands while a transcription attempt is still in flight is
// ignored; at most one attempt runs at a time and its result must not be
// clobbered mid-flight.
func (d *Daemon) beginRecording() {
	ctx := d.ctx

	if d.transcriber.InFlight() {
		d.logger.Warn("record intent ignored, transcription attempt in flight")
		return
	}

	if err := d.store.SetBool(ctx, protocol.KeyAppRunning, true); err != nil {
		d.logger.Warn("failed to set running flag", slog.String("error", err.Error()))
	}
	if err := d.notifier.Post(protocol.EventAppRunning); err != nil {
		d.logger.Warn("failed to post running event", slog.String("error", err.Error()))
	}

	if err := d.store.Remove(ctx, protocol.KeyTranscribedText); err != nil {
		d.logger.Warn("failed to clear prior text", slog.String("error", err.Error()))
	}
	d.transcriber.ClearLast()
	d.tracker.Reset()

	if err := d.recorder.Start(ctx); err != nil {
		d.logger.Warn("recorder start failed", slog.String("error", err.Error()))
		return
	}
	if err := d.stats.RecordingStarted(ctx); err != nil {
		d.logger.Warn("failed to count recording", slog.String("error", err.Error()))
	}
	if d.recordingsStarted != nil {
		d.recordingsStarted.Add(ctx, 1)
	}
}

// stopAndSubmit stops capture and runs one transcription attempt in the
// background; results land in the shared store before status flips.
func (d *Daemon) stopAndSubmit() {
	d.recorder.Stop()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := d.ctx
		if err := d.transcriber.Transcribe(ctx, d.recorder.ArtifactPath()); err != nil {
			d.logger.Warn("transcription rejected", slog.String("error", err.Error()))
			return
		}
		if d.attemptsFinished != nil {
			d.attemptsFinished.Add(ctx, 1)
		}
		if text := d.transcriber.LastText(); text != "" {
			if err := d.stats.TranscriptionFinished(ctx, len(text)); err != nil {
				d.logger.Warn("failed to count transcription", slog.String("error", err.Error()))
			}
		}
	}()
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (d *Daemon) handleReady(w http.ResponseWriter, _ *http.Request) {
	if d.ready.Load() && d.notifier.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (d *Daemon) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d.beginRecording()
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d.stopAndSubmit()
	w.WriteHeader(http.StatusAccepted)
}

type statusResponse struct {
	Status    string  `json:"status"`
	Recording bool    `json:"recording"`
	Level     float64 `json:"level_db"`
	Text      string  `json:"text,omitempty"`
}

// handleStatus is the reconciliation read: the keyboard client polls it
// when a wake-up notification may have been missed.
func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:    d.tracker.Current().String(),
		Recording: d.recorder.Active(),
		Level:     d.recorder.CurrentLevel(),
		Text:      d.transcriber.LastText(),
	}
	writeJSON(w, resp)
}

// handleLevel exposes the instantaneous signal level for meter displays
// that poll faster than the full status read.
func (d *Daemon) handleLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]float64{"level_db": d.recorder.CurrentLevel()})
}

func (d *Daemon) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counters, err := d.stats.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, counters)
}

// handleIntent accepts the custom-scheme URIs the keyboard client emits.
// The bare route begins recording; the help route is acknowledged without
// touching the capture session.
func (d *Daemon) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	route, err := protocol.ParseIntent(r.URL.Query().Get("uri"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if route == protocol.IntentRecord {
		d.beginRecording()
	}
	writeJSON(w, map[string]string{"route": string(route)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
