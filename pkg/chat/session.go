package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// State names the session's lifecycle phase.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingInput State = "awaiting_input"
	StateSending       State = "sending"
	StateListening     State = "listening"
)

var (
	// ErrNotStarted is returned when input is submitted before Start.
	ErrNotStarted = errors.New("chat: session not started")
	// ErrBusy is returned when input is submitted while a completion call
	// is outstanding. Overlapping submissions are rejected, not queued.
	ErrBusy = errors.New("chat: completion already in flight")
)

// Completer produces an assistant reply for an ordered turn history.
type Completer interface {
	Complete(ctx context.Context, history []Turn) (string, error)
}

// Speaker speaks assistant text aloud. done is invoked exactly once when
// playback finishes (or immediately on playback failure).
type Speaker interface {
	Speak(ctx context.Context, text string, done func()) error
}

// Listener re-opens the microphone for one recognition pass. Recognized
// text is expected to come back through Submit.
type Listener interface {
	Listen(ctx context.Context) error
}

// UI receives rendering events. Implementations must tolerate calls from
// the goroutine driving the session.
type UI interface {
	ShowTurn(role Role, text string)
	// ShowThinking renders a transient placeholder and returns a func that
	// removes it.
	ShowThinking() (remove func())
	ShowError(message string)
}

type nopUI struct{}

func (nopUI) ShowTurn(Role, string) {}
func (nopUI) ShowThinking() func()  { return func() {} }
func (nopUI) ShowError(string)      {}

const (
	defaultGreeting          = "こんにちは！何かお話ししましょう。"
	defaultTerminationPhrase = "さようなら"
)

// Options configures a conversation session.
type Options struct {
	Completer Completer // required
	Speaker   Speaker   // optional; no speech output when nil
	Listener  Listener  // optional; no microphone re-arm when nil
	UI        UI        // optional

	// Greeting is the fixed assistant turn emitted on Start.
	Greeting string
	// SystemInstruction, when non-empty, is appended as the history's
	// initial system turn on Start.
	SystemInstruction string
	// TerminationPhrase ends the voice loop when a user turn contains it.
	TerminationPhrase string

	Logger *slog.Logger
}

// Session drives one conversation: capture input, append user turn, call
// the completion relay, append and render the assistant turn, optionally
// speak it and re-arm listening. All state is in memory and lost when the
// session is discarded.
type Session struct {
	id   string
	opts Options

	mu                   sync.Mutex
	state                State
	started              bool
	history              *History
	continueConversation bool
}

// NewSession creates a session in the idle state.
func NewSession(opts Options) (*Session, error) {
	if opts.Completer == nil {
		return nil, errors.New("chat: Completer is required")
	}
	if opts.UI == nil {
		opts.UI = nopUI{}
	}
	if opts.Greeting == "" {
		opts.Greeting = defaultGreeting
	}
	if opts.TerminationPhrase == "" {
		opts.TerminationPhrase = defaultTerminationPhrase
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		id:      uuid.NewString(),
		opts:    opts,
		state:   StateIdle,
		history: NewHistory(),
	}, nil
}

// ID returns the session's correlation id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// ContinueConversation reports whether the microphone re-arms after the
// next spoken reply.
func (s *Session) ContinueConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.continueConversation
}

// Start emits the fixed greeting, seeds the history and arms the session.
// Calling Start again is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.state = StateAwaitingInput
	s.continueConversation = true

	if s.opts.SystemInstruction != "" {
		_ = s.history.Append(Turn{Role: RoleSystem, Content: s.opts.SystemInstruction})
	}
	s.history.AppendAssistant(s.opts.Greeting)
	greeting := s.opts.Greeting
	s.mu.Unlock()

	s.opts.UI.ShowTurn(RoleAssistant, greeting)
	s.speak(ctx, greeting)
	s.opts.Logger.Info("conversation started", "session_id", s.id)
}

// ActivateVoice re-opens the microphone on explicit user request and
// re-arms the conversation loop.
func (s *Session) ActivateVoice(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.continueConversation = true
	s.state = StateListening
	s.mu.Unlock()

	return s.listen(ctx)
}

// Submit processes one user input (typed or recognized speech): it appends
// the user turn, makes a single completion attempt with the full history,
// and appends the assistant turn on success. A failed turn renders exactly
// one error turn, appends nothing, and is never re-sent automatically.
// Submit returns ErrBusy while a previous completion call is outstanding.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.state == StateSending {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = StateSending

	s.history.AppendUser(text)
	s.continueConversation = !strings.Contains(text, s.opts.TerminationPhrase)
	history := s.history.Turns()
	s.mu.Unlock()

	s.opts.UI.ShowTurn(RoleUser, text)
	removeThinking := s.opts.UI.ShowThinking()

	reply, err := s.opts.Completer.Complete(ctx, history)
	removeThinking()

	s.mu.Lock()
	s.state = StateAwaitingInput
	if err != nil {
		s.mu.Unlock()
		s.opts.Logger.Error("completion failed", "session_id", s.id, "error", err)
		s.opts.UI.ShowError(err.Error())
		return err
	}
	s.history.AppendAssistant(reply)
	s.mu.Unlock()

	s.opts.UI.ShowTurn(RoleAssistant, reply)
	s.speak(ctx, reply)
	return nil
}

// speak triggers speech output when a Speaker is configured. When playback
// completes, the microphone re-arms only if the continue flag is still set.
func (s *Session) speak(ctx context.Context, text string) {
	if s.opts.Speaker == nil {
		return
	}
	err := s.opts.Speaker.Speak(ctx, text, func() {
		s.mu.Lock()
		cont := s.continueConversation
		s.mu.Unlock()
		if !cont {
			s.opts.Logger.Info("conversation ended", "session_id", s.id)
			return
		}
		s.mu.Lock()
		s.state = StateListening
		s.mu.Unlock()
		_ = s.listen(ctx)
	})
	if err != nil {
		s.opts.Logger.Error("speech output failed", "session_id", s.id, "error", err)
		s.opts.UI.ShowError(err.Error())
	}
}

func (s *Session) listen(ctx context.Context) error {
	if s.opts.Listener == nil {
		s.mu.Lock()
		s.state = StateAwaitingInput
		s.mu.Unlock()
		return nil
	}
	if err := s.opts.Listener.Listen(ctx); err != nil {
		s.mu.Lock()
		s.state = StateAwaitingInput
		s.mu.Unlock()
		s.opts.Logger.Error("speech recognition failed", "session_id", s.id, "error", err)
		s.opts.UI.ShowError(err.Error())
		return err
	}
	return nil
}
