package record

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/voxkey-labs/voxkey/internal/config"
)

// LevelFloor is the clamp floor for signal level readouts, in dBFS.
// CurrentLevel returns exactly this value while capture is idle.
const LevelFloor = -80.0

// Recorder owns the capture session and the single-slot audio artifact.
// Each Start overwrites the previous recording; at most one capture runs at
// a time. The capture command is kept configurable so any PCM source that
// writes s16le to stdout can serve as the device.
type Recorder struct {
	cfg config.CaptureConfig
	log *slog.Logger

	mu     sync.Mutex
	active bool
	level  float64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRecorder(cfg config.CaptureConfig, log *slog.Logger) *Recorder {
	return &Recorder{
		cfg:   cfg,
		log:   log.With(slog.String("component", "recorder")),
		level: LevelFloor,
	}
}

// ArtifactPath returns the single-slot artifact location.
func (r *Recorder) ArtifactPath() string {
	return r.cfg.ArtifactPath
}

// Active reports whether a capture session is running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// CurrentLevel returns the most recent instantaneous signal level in dBFS,
// clamped to [LevelFloor, 0]. Presentation feedback only; never used for
// decision logic.
func (r *Recorder) CurrentLevel() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return LevelFloor
	}
	return r.level
}

// Start opens a capture session and begins writing to the artifact slot,
// overwriting any prior content. A capture device that cannot be opened is
// a no-op other than logging; the failure surfaces later as an empty or
// unreadable artifact at submit time.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		r.log.Warn("capture already active, ignoring start")
		return nil
	}
	r.active = true
	r.level = LevelFloor
	captureCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	sessionID := uuid.NewString()

	args, err := shellwords.NewParser().Parse(r.cfg.Command)
	if err != nil || len(args) == 0 {
		r.log.Warn("invalid capture command", slog.String("command", r.cfg.Command))
		r.finish(done)
		cancel()
		return nil
	}

	cmd := exec.CommandContext(captureCtx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.log.Warn("capture pipe failed", slogError(err))
		r.finish(done)
		cancel()
		return nil
	}
	if err := cmd.Start(); err != nil {
		r.log.Warn("capture device unavailable", slogError(err), slog.String("command", args[0]))
		r.finish(done)
		cancel()
		return nil
	}

	file, err := r.openArtifact()
	if err != nil {
		r.log.Warn("open artifact failed", slogError(err))
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		r.finish(done)
		cancel()
		return nil
	}

	r.log.Info("capture started",
		slog.String("session_id", sessionID),
		slog.String("artifact", r.cfg.ArtifactPath))

	go r.captureLoop(sessionID, cmd, stdout, file, done)
	return nil
}

// Stop halts active capture. The recorder itself stays warm so the next
// Start does not re-acquire anything beyond the capture command.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Recorder) openArtifact() (*os.File, error) {
	dir := filepath.Dir(r.cfg.ArtifactPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return os.Create(r.cfg.ArtifactPath)
}

func (r *Recorder) captureLoop(sessionID string, cmd *exec.Cmd, stdout io.Reader, file *os.File, done chan struct{}) {
	defer r.finish(done)
	defer func() {
		_ = cmd.Wait()
	}()

	enc := wav.NewEncoder(file, r.cfg.SampleRate, 16, r.cfg.Channels, 1)
	format := &audio.Format{NumChannels: r.cfg.Channels, SampleRate: r.cfg.SampleRate}

	frameBytes := r.cfg.SampleRate * r.cfg.Channels * 2 * r.cfg.FrameMS / 1000
	if frameBytes <= 0 {
		frameBytes = 640
	}
	frame := make([]byte, frameBytes)
	intBuf := make([]int, frameBytes/2)

	var frames int
	for {
		n, err := io.ReadFull(stdout, frame)
		if n > 0 {
			samples := n / 2
			for i := 0; i < samples; i++ {
				intBuf[i] = int(int16(binary.LittleEndian.Uint16(frame[i*2:])))
			}
			r.setLevel(frameLevel(intBuf[:samples]))
			buf := &audio.IntBuffer{Format: format, Data: intBuf[:samples], SourceBitDepth: 16}
			if werr := enc.Write(buf); werr != nil {
				r.log.Warn("artifact write failed", slogError(werr))
				break
			}
			frames++
		}
		if err != nil {
			break
		}
	}

	if err := enc.Close(); err != nil {
		r.log.Warn("artifact close failed", slogError(err))
	}
	_ = file.Close()

	r.log.Info("capture stopped",
		slog.String("session_id", sessionID),
		slog.Int("frames", frames))
}

func (r *Recorder) setLevel(db float64) {
	r.mu.Lock()
	r.level = db
	r.mu.Unlock()
}

func (r *Recorder) finish(done chan struct{}) {
	r.mu.Lock()
	r.active = false
	r.level = LevelFloor
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()
	close(done)
}

// frameLevel converts one PCM frame to an RMS level in dBFS, clamped to
// [LevelFloor, 0].
func frameLevel(samples []int) float64 {
	if len(samples) == 0 {
		return LevelFloor
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return LevelFloor
	}
	db := 20 * math.Log10(rms)
	if db < LevelFloor {
		return LevelFloor
	}
	if db > 0 {
		return 0
	}
	return db
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
