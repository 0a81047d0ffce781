package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-exchange/internal/domain"
)

const auditTimeout = 5 * time.Second

// Sender delivers the newest user message to a chat backend and returns the
// reply text. history holds the turns that preceded text, oldest first.
type Sender interface {
	Send(ctx context.Context, history []domain.Turn, text string) (string, error)
}

// Recorder keeps an audit trail of exchanges. Recording failures never affect
// the conversation.
type Recorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// Outcome reports how a submission ended.
type Outcome struct {
	// Accepted is false when the text was blank and nothing happened.
	Accepted bool
	// Reply is the terminal turn: the assistant reply, or an error turn.
	Reply domain.Turn
	// Failed is true when Reply describes a backend failure.
	Failed bool
	// Stale is true when the session was reset before the reply settled.
	// Reply was then discarded and is not part of any conversation.
	Stale bool
}

// Session owns one conversation and the request gate in front of its backend.
// It is safe for concurrent use.
type Session struct {
	sender   Sender
	recorder Recorder
	backend  string
	now      func() time.Time
	newID    func() string

	mu         sync.Mutex
	id         string
	generation uint64
	turns      []domain.Turn
	pending    bool
	input      string
	project    domain.ProjectContext
	cancel     context.CancelFunc
}

type SessionOption func(*Session)

// WithRecorder enables the audit trail.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithBackendName labels audit entries and log lines with the backend in use.
func WithBackendName(name string) SessionOption {
	return func(s *Session) {
		s.backend = strings.TrimSpace(name)
	}
}

func NewSession(sender Sender, opts ...SessionOption) (*Session, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	s := &Session{
		sender: sender,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.newID()
	return s, nil
}

// ID identifies the current session generation. It changes on Reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Backend() string {
	return s.backend
}

// Turns returns a snapshot of the conversation in chronological order.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Pending reports whether a reply is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

func (s *Session) Project() domain.ProjectContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

func (s *Session) SetProject(p domain.ProjectContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p
}

// Reset starts a new session: the conversation, the input and the project
// fields are cleared. An outstanding request is cancelled and whatever it
// eventually returns is discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	previous := s.id
	s.generation++
	s.id = s.newID()
	s.turns = nil
	s.pending = false
	s.input = ""
	s.project = domain.ProjectContext{}
	current := s.id
	s.mu.Unlock()

	slog.Info("session reset", "previous", previous, "session", current)
}

// Submit runs a complete exchange for text: Begin followed by Resolve.
// Blank text is ignored and reported as an Outcome that was not accepted.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	x, err := s.Begin(text)
	if err != nil {
		return Outcome{}, err
	}
	if x == nil {
		return Outcome{}, nil
	}
	return x.Resolve(ctx), nil
}

// SubmitInput submits the current contents of the input field.
func (s *Session) SubmitInput(ctx context.Context) (Outcome, error) {
	return s.Submit(ctx, s.Input())
}

// Begin appends text as a user turn, clears the input field and marks the
// session pending. It does no I/O, so UIs may call it on their event loop. It returns a nil Exchange for blank text, and a
// REQUEST_PENDING error while another exchange is outstanding.
func (s *Session) Begin(text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, newError(ErrorRequestPending, "request_in_flight", nil)
	}
	turn := s.newTurn(domain.SenderUser, text)
	history := make([]domain.Turn, len(s.turns))
	copy(history, s.turns)
	s.turns = append(s.turns, turn)
	s.input = ""
	s.pending = true
	x := &Exchange{
		session:    s,
		generation: s.generation,
		sessionID:  s.id,
		seq:        len(s.turns) - 1,
		history:    history,
		prompt:     turn,
	}
	s.mu.Unlock()

	slog.Info("exchange submitted", "session", x.sessionID, "backend", s.backend, "seq", x.seq)
	return x, nil
}

// Exchange is a submission whose reply has not settled yet.
type Exchange struct {
	session    *Session
	generation uint64
	sessionID  string
	seq        int
	history    []domain.Turn
	prompt     domain.Turn

	once    sync.Once
	outcome Outcome
}

// Resolve calls the backend and appends exactly one terminal turn: the reply
// on success, or an error turn describing the failure. The session leaves the
// pending state on every path. Calling Resolve again returns the first outcome.
func (x *Exchange) Resolve(ctx context.Context) Outcome {
	x.once.Do(func() {
		x.outcome = x.resolve(ctx)
	})
	return x.outcome
}

func (x *Exchange) resolve(ctx context.Context) Outcome {
	s := x.session
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settled := false
	defer func() {
		if !settled {
			s.release(x.generation)
		}
	}()

	s.record(ctx, domain.AuditEntry{
		SessionID: x.sessionID,
		Backend:   s.backend,
		Seq:       x.seq,
		Turn:      x.prompt,
		Phase:     domain.PhaseSubmitted,
		Turns:     x.seq + 1,
	})

	if !s.attach(x.generation, cancel) {
		settled = true
		slog.Info("exchange superseded before sending", "session", x.sessionID, "seq", x.seq)
		return Outcome{Accepted: true, Stale: true}
	}

	reply, err := s.sender.Send(ctx, x.history, x.prompt.Text)
	var (
		turn   domain.Turn
		failed bool
	)
	if err != nil {
		failed = true
		ue := classify(err)
		slog.Warn("exchange failed", "session", x.sessionID, "backend", s.backend, "code", ue.Code, "reason", ue.Reason, "err", err)
		turn = s.newTurn(domain.SenderSystem, FailureText(err))
	} else {
		turn = s.newTurn(domain.SenderAssistant, reply)
	}

	out := s.settle(ctx, x, turn, failed)
	settled = true
	return out
}

// attach registers cancel as the in-flight request of generation. It reports
// false if the session has moved on.
func (s *Session) attach(generation uint64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.cancel = cancel
	return true
}

// release clears the pending state of generation without appending a turn.
func (s *Session) release(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation == s.generation {
		s.pending = false
		s.cancel = nil
	}
}

func (s *Session) settle(ctx context.Context, x *Exchange, turn domain.Turn, failed bool) Outcome {
	s.mu.Lock()
	if x.generation != s.generation {
		s.mu.Unlock()
		slog.Info("discarding reply for superseded session", "session", x.sessionID, "seq", x.seq, "failed", failed)
		return Outcome{Accepted: true, Reply: turn, Failed: failed, Stale: true}
	}
	s.turns = append(s.turns, turn)
	s.pending = false
	s.cancel = nil
	seq := len(s.turns) - 1
	s.mu.Unlock()

	slog.Info("exchange settled", "session", x.sessionID, "backend", s.backend, "seq", seq, "failed", failed)
	s.record(ctx, domain.AuditEntry{
		SessionID: x.sessionID,
		Backend:   s.backend,
		Seq:       seq,
		Turn:      turn,
		Phase:     domain.PhaseSettled,
		Turns:     seq + 1,
	})
	return Outcome{Accepted: true, Reply: turn, Failed: failed}
}

// record writes entry to the audit trail. The write outlives a cancelled
// exchange but is bounded by auditTimeout.
func (s *Session) record(ctx context.Context, entry domain.AuditEntry) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed", "session", entry.SessionID, "phase", entry.Phase, "err", err)
	}
}

func (s *Session) newTurn(sender domain.Sender, text string) domain.Turn {
	return domain.Turn{
		ID:        s.newID(),
		Sender:    sender,
		Text:      text,
		CreatedAt: s.now(),
	}
}
