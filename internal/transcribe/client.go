package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/protocol"
	"github.com/voxkey-labs/voxkey/internal/secret"
	"github.com/voxkey-labs/voxkey/internal/status"
	"github.com/voxkey-labs/voxkey/internal/store"
	"github.com/voxkey-labs/voxkey/internal/vocab"
)

// artifactFilename is the fixed filename carried in the multipart request,
// part of the endpoint's wire contract regardless of the on-disk artifact.
const artifactFilename = "recording.m4a"

// Poster abstracts the notifier so the client can wake the keyboard side
// without owning the bus connection.
type Poster interface {
	Post(event protocol.Event) error
}

// Client submits the captured artifact to the external speech-to-text
// endpoint and drives the status tracker through the attempt.
type Client struct {
	cfg     config.TranscriberConfig
	secrets secret.Store
	store   *store.Store
	vocab   *vocab.Manager
	tracker *status.Tracker
	poster  Poster
	http    *http.Client
	log     *slog.Logger

	// mu serializes attempts; resultMu guards the in-process result so
	// status polling never waits on the network.
	mu       sync.Mutex
	inFlight atomic.Bool
	resultMu sync.Mutex
	lastText string
}

func NewClient(cfg config.TranscriberConfig, secrets secret.Store, st *store.Store, vm *vocab.Manager, tracker *status.Tracker, poster Poster, log *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		secrets: secrets,
		store:   st,
		vocab:   vm,
		tracker: tracker,
		poster:  poster,
		http: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		},
		log: log.With(slog.String("component", "transcriber")),
	}
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

// Transcribe runs one attempt against the configured endpoint. Only a
// missing credential or an unreadable artifact produce the Error status; a
// transport or decode failure still lands in Finished with no stored text,
// and no retry is attempted.
func (c *Client) Transcribe(ctx context.Context, artifactPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	credential, err := c.secrets.Credential()
	if err != nil || credential == "" {
		c.tracker.Set(status.Error)
		if err != nil {
			return fmt.Errorf("credential lookup: %w", err)
		}
		return fmt.Errorf("no transcription credential stored")
	}

	c.tracker.Set(status.Transcribing)

	audio, err := os.ReadFile(artifactPath)
	if err != nil || len(audio) == 0 {
		c.tracker.Set(status.Error)
		if err != nil {
			return fmt.Errorf("read artifact: %w", err)
		}
		return fmt.Errorf("artifact is empty")
	}

	terms, err := c.vocab.List(ctx)
	if err != nil {
		c.log.Warn("vocabulary read failed, continuing without hint", slogError(err))
		terms = nil
	}

	text, err := c.submit(ctx, credential, audio, terms)
	if err != nil {
		// Failed attempts still finish; the user sees nothing to insert
		// and must re-record.
		c.log.Warn("transcription attempt failed", slogError(err))
		c.tracker.Set(status.Finished)
		return nil
	}

	if err := c.store.Set(ctx, protocol.KeyTranscribedText, text); err != nil {
		c.log.Warn("failed to store transcription", slogError(err))
	} else if c.poster != nil {
		if err := c.poster.Post(protocol.EventTranscriptionReady); err != nil {
			c.log.Warn("failed to post transcription ready", slogError(err))
		}
	}

	c.resultMu.Lock()
	c.lastText = text
	c.resultMu.Unlock()
	c.tracker.Set(status.Finished)
	c.log.Info("transcription finished", slog.Int("chars", len(text)))
	return nil
}

func (c *Client) submit(ctx context.Context, credential string, audio []byte, terms []string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", artifactFilename)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.Model); err != nil {
		return "", fmt.Errorf("write model part: %w", err)
	}
	if sentence := vocab.PromptSentence(terms); sentence != "" {
		if err := writer.WriteField("prompt", sentence); err != nil {
			return "", fmt.Errorf("write prompt part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post transcription: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("endpoint returned status %s", resp.Status)
	}

	var decoded transcriptionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Text == nil {
		return "", fmt.Errorf("response missing text field")
	}
	return *decoded.Text, nil
}

// LastText returns the most recent in-process transcription result. Safe to
// call while an attempt is in flight.
func (c *Client) LastText() string {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return c.lastText
}

// ClearLast drops the in-process result; called at the retry transition.
func (c *Client) ClearLast() {
	c.resultMu.Lock()
	c.lastText = ""
	c.resultMu.Unlock()
}

// InFlight reports whether a transcription attempt is currently running.
func (c *Client) InFlight() bool {
	return c.inFlight.Load()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
