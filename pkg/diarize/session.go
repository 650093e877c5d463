package diarize

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// State names the session's lifecycle phase.
type State string

const (
	StateStopped   State = "stopped"
	StateStarting  State = "starting"
	StateListening State = "listening"
)

// ErrAlreadyRecording is returned when Start is called while a session is
// active.
var ErrAlreadyRecording = errors.New("diarize: session already recording")

// Callbacks receive recognition events from a running engine.
type Callbacks struct {
	// OnUtterance delivers one completed utterance with its speaker label.
	OnUtterance func(speaker SpeakerID, text string)
	// OnStopped fires when the engine ends the session on its own.
	OnStopped func()
	// OnCanceled fires when the engine aborts with a reason.
	OnCanceled func(reason string)
}

// Engine is a live recognition engine handle.
type Engine interface {
	// Stop requests graceful shutdown.
	Stop(ctx context.Context) error
	// Close releases the engine. Safe to call after a failed Stop.
	Close() error
}

// AudioSink is the optional capability of engines that accept a caller-fed
// audio stream.
type AudioSink interface {
	SendAudio(data []byte) error
}

// Transcriber constructs recognition engines. It abstracts the vendor SDK
// so session logic never depends on a concrete client.
type Transcriber interface {
	Start(ctx context.Context, cb Callbacks) (Engine, error)
}

// UI receives recording-state and transcript updates.
type UI interface {
	SetRecording(recording bool)
	Status(message string)
	Error(message string)
	RenderTranscript(entries []Entry)
}

type nopUI struct{}

func (nopUI) SetRecording(bool)        {}
func (nopUI) Status(string)            {}
func (nopUI) Error(string)             {}
func (nopUI) RenderTranscript([]Entry) {}

// Options configures a transcription session.
type Options struct {
	Transcriber Transcriber // required
	UI          UI          // optional
	Logger      *slog.Logger
}

// Session owns one diarized transcription lifecycle:
// stopped -> starting -> listening -> stopped.
type Session struct {
	opts       Options
	transcript *Transcript

	mu     sync.Mutex
	state  State
	engine Engine
}

// NewSession creates a stopped session.
func NewSession(opts Options) (*Session, error) {
	if opts.Transcriber == nil {
		return nil, errors.New("diarize: Transcriber is required")
	}
	if opts.UI == nil {
		opts.UI = nopUI{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		opts:       opts,
		transcript: NewTranscript(),
		state:      StateStopped,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the session's transcript accumulator.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Start acquires a recognition engine and begins listening. Any
// construction failure returns the session to stopped with a rendered
// error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	s.state = StateStarting
	s.mu.Unlock()

	// Fresh session, fresh transcript.
	s.transcript.Reset()
	s.opts.UI.RenderTranscript(nil)
	s.opts.UI.SetRecording(true)
	s.opts.UI.Status("Connecting to service...")

	engine, err := s.opts.Transcriber.Start(ctx, Callbacks{
		OnUtterance: s.onUtterance,
		OnStopped:   s.onStopped,
		OnCanceled:  s.onCanceled,
	})
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.opts.UI.SetRecording(false)
		s.opts.UI.Error("failed to start transcription: " + err.Error())
		s.opts.Logger.Error("transcription start failed", "error", err)
		return err
	}

	s.mu.Lock()
	if s.state != StateStarting {
		// A stop arrived while the engine was connecting. Honor it: shut
		// the fresh engine down instead of installing it.
		s.mu.Unlock()
		if err := engine.Stop(ctx); err != nil {
			s.opts.Logger.Error("transcription stop failed", "error", err)
		}
		_ = engine.Close()
		s.opts.UI.SetRecording(false)
		return nil
	}
	s.engine = engine
	s.state = StateListening
	s.mu.Unlock()

	s.opts.UI.Status("Listening... Speak into your microphone.")
	s.opts.Logger.Info("transcription started")
	return nil
}

// Stop requests graceful engine shutdown and resets the UI regardless of
// whether shutdown succeeds. The live engine reference is cleared before
// the stop request is issued, so a concurrent or repeated Stop observes no
// engine and is a no-op.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	engine := s.engine
	s.engine = nil
	s.state = StateStopped
	s.mu.Unlock()

	if engine == nil {
		s.opts.UI.SetRecording(false)
		return
	}

	if err := engine.Stop(ctx); err != nil {
		// Shutdown failure is logged, not fatal.
		s.opts.Logger.Error("transcription stop failed", "error", err)
		s.opts.UI.Error("stop error: " + err.Error())
	} else {
		s.opts.UI.Status("Recording stopped.")
		s.opts.Logger.Info("transcription stopped")
	}
	_ = engine.Close()
	s.opts.UI.SetRecording(false)
}

func (s *Session) onUtterance(speaker SpeakerID, text string) {
	if text == "" {
		return
	}
	s.transcript.Add(speaker, text)
	s.opts.UI.RenderTranscript(s.transcript.Entries())
}

func (s *Session) onStopped() {
	s.opts.UI.Status("Session stopped.")
	s.Stop(context.Background())
}

func (s *Session) onCanceled(reason string) {
	s.opts.UI.Error("canceled: " + reason)
	s.opts.Logger.Error("transcription canceled", "reason", reason)
	s.Stop(context.Background())
}
