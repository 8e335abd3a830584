package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/frn-reports/voicereport/internal/ai"
	"github.com/frn-reports/voicereport/internal/common"
	"github.com/frn-reports/voicereport/internal/report"
	"gorm.io/gorm"
)

const systemPrompt = "You are a friendly voice assistant for the forensic engineering department. " +
	"You guide an investigator through an incident report, one field at a time. " +
	"Keep replies short, natural and conversational. " +
	"Do not repeat the reporter's words back verbatim; acknowledge and move on."

const cannedClosing = "Your report has been prepared and sent. Thank you."

type Options struct {
	Greeting        bool
	ContextWindow   int
	DefaultProvider string
	DefaultModel    string
}

// Service is the dialogue state machine. Cursor and phase advance as a pure
// function of the session phase and the presence of a non-empty utterance;
// the generated reply text never influences state.
type Service struct {
	repo       *Repo
	registry   *ai.Registry
	schema     report.Schema
	assembler  *report.Assembler
	dispatcher report.Dispatcher

	greeting        bool
	window          int
	defaultProvider string
	defaultModel    string

	locks *keyedMutex
}

func NewService(repo *Repo, registry *ai.Registry, schema report.Schema, assembler *report.Assembler, dispatcher report.Dispatcher, opts Options) *Service {
	if schema.Len() == 0 {
		panic("dialogue: schema must have at least one field")
	}
	window := opts.ContextWindow
	if window <= 0 || window > 100 {
		window = 20
	}
	provider := opts.DefaultProvider
	if provider == "" {
		provider = "ollama"
	}
	model := opts.DefaultModel
	if model == "" {
		model = "llama3:latest"
	}
	return &Service{
		repo:            repo,
		registry:        registry,
		schema:          schema,
		assembler:       assembler,
		dispatcher:      dispatcher,
		greeting:        opts.Greeting,
		window:          window,
		defaultProvider: provider,
		defaultModel:    model,
		locks:           newKeyedMutex(),
	}
}

type TurnResult struct {
	SessionID        string `json:"session_id"`
	Reply            string `json:"reply"`
	Phase            Phase  `json:"phase"`
	Cursor           int    `json:"cursor"`
	FieldID          string `json:"field_id,omitempty"`
	ReportDispatched bool   `json:"report_dispatched"`
}

// Turn processes one inbound utterance for a session, creating the session on
// first contact. Turns for the same session id are serialized; the lock is
// held across the external calls so a slow generation cannot interleave with
// the next turn's state reads.
func (s *Service) Turn(ctx context.Context, userID uint64, sessionID, utterance string) (*TurnResult, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		sess, err = s.createSession(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if sess.UserID != userID {
		// hide existence
		return nil, gorm.ErrRecordNotFound
	}

	utterance = strings.TrimSpace(utterance)

	switch Phase(sess.Phase) {
	case PhaseAwaitingGreeting:
		return s.greetingTurn(ctx, sess, utterance)
	case PhaseCollecting:
		return s.collectingTurn(ctx, sess, utterance)
	case PhaseCompleted:
		return s.completedTurn(ctx, sess, utterance)
	default:
		return nil, fmt.Errorf("%w: unknown phase %q", ErrInvariant, sess.Phase)
	}
}

func (s *Service) createSession(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	phase := PhaseCollecting
	if s.greeting {
		phase = PhaseAwaitingGreeting
	}
	sess := &Session{
		SessionID: sessionID,
		UserID:    userID,
		Provider:  s.defaultProvider,
		Model:     s.defaultModel,
		Phase:     string(phase),
		Cursor:    0,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	// seed the transcript with the behavioral instruction
	if err := s.repo.InsertTurn(ctx, &Turn{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "system",
		Content:   systemPrompt,
	}); err != nil {
		return nil, err
	}
	return sess, nil
}

// greetingTurn spends exactly one utterance on pleasantries; no field data is
// stored. The phase commit happens only after a successful generation so a
// failed turn can be retried in place.
func (s *Service) greetingTurn(ctx context.Context, sess *Session, utterance string) (*TurnResult, error) {
	if utterance != "" {
		if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "user", Content: utterance}); err != nil {
			return nil, err
		}
	}

	first := s.schema.Field(0)
	instr := fmt.Sprintf("Greet the reporter warmly and briefly, then ask for %s.", first.Prompt)
	reply, err := s.generate(ctx, sess, instr)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "assistant", Content: reply}); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionState(ctx, sess.SessionID, PhaseCollecting, 0, sess.ReportDispatched); err != nil {
		return nil, err
	}
	sess.Phase = string(PhaseCollecting)
	return s.result(sess, reply), nil
}

func (s *Service) collectingTurn(ctx context.Context, sess *Session, utterance string) (*TurnResult, error) {
	if sess.Cursor < 0 || sess.Cursor >= s.schema.Len() {
		return nil, fmt.Errorf("%w: cursor %d outside schema of %d fields", ErrInvariant, sess.Cursor, s.schema.Len())
	}
	field := s.schema.Field(sess.Cursor)

	if utterance == "" {
		// no storage, no advancement; re-request the same field
		instr := fmt.Sprintf("The reporter's last input was empty or unintelligible. Politely ask again for %s. Do not move to any other field.", field.Prompt)
		reply, err := s.generate(ctx, sess, instr)
		if err != nil {
			return nil, err
		}
		if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "assistant", Content: reply}); err != nil {
			return nil, err
		}
		return s.result(sess, reply), nil
	}

	// The answer is stored and the cursor advanced before the generation
	// call; supplied data is never rolled back on a generation failure.
	if err := s.repo.UpsertAnswer(ctx, sess.SessionID, field.ID, utterance); err != nil {
		return nil, err
	}
	if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "user", Content: utterance}); err != nil {
		return nil, err
	}

	next := sess.Cursor + 1
	phase := PhaseCollecting
	if next >= s.schema.Len() {
		phase = PhaseCompleted
	}
	if err := s.repo.UpdateSessionState(ctx, sess.SessionID, phase, next, sess.ReportDispatched); err != nil {
		return nil, err
	}
	sess.Cursor = next
	sess.Phase = string(phase)

	if phase == PhaseCompleted && !sess.ReportDispatched {
		if err := s.handoff(ctx, sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
		}
	}

	var instr string
	if phase == PhaseCompleted {
		instr = "All report fields are collected and the report has been sent. Tell the reporter the report is on its way and thank them."
	} else {
		instr = fmt.Sprintf("The reporter just provided %s. Acknowledge briefly without repeating it, then ask for %s.",
			field.Prompt, s.schema.Field(next).Prompt)
	}
	reply, err := s.generate(ctx, sess, instr)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "assistant", Content: reply}); err != nil {
		return nil, err
	}
	return s.result(sess, reply), nil
}

// completedTurn never mutates answers or cursor. The first entry with an
// undispatched report retries the handoff; afterwards it only closes out.
func (s *Service) completedTurn(ctx context.Context, sess *Session, utterance string) (*TurnResult, error) {
	if utterance != "" {
		if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "user", Content: utterance}); err != nil {
			return nil, err
		}
	}

	instr := "The report has already been sent. Thank the reporter and close the conversation."
	if !sess.ReportDispatched {
		if err := s.handoff(ctx, sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
		}
		instr = "All report fields are collected and the report has just been sent. Tell the reporter and thank them."
	}

	reply, err := s.generate(ctx, sess, instr)
	if err != nil {
		log.Printf("[dialogue] closing reply generation failed session=%s err=%v", sess.SessionID, err)
		reply = cannedClosing
	}
	if err := s.repo.InsertTurn(ctx, &Turn{SessionID: sess.SessionID, UserID: sess.UserID, Role: "assistant", Content: reply}); err != nil {
		return nil, err
	}
	return s.result(sess, reply), nil
}

// handoff assembles the collected answers and delivers the document.
// report_dispatched flips only after a successful delivery, so a failed
// handoff is retried on the next turn with the same data.
func (s *Service) handoff(ctx context.Context, sess *Session) error {
	answers, err := s.repo.ListAnswers(ctx, sess.SessionID)
	if err != nil {
		return err
	}
	reportID, err := common.NewULID()
	if err != nil {
		return err
	}
	doc, err := s.assembler.Render(reportID, sess.SessionID, answers)
	if err != nil {
		return err
	}
	if err := s.dispatcher.Dispatch(ctx, "report_"+sess.SessionID+".txt", doc); err != nil {
		return err
	}
	if err := s.repo.UpdateSessionState(ctx, sess.SessionID, PhaseCompleted, sess.Cursor, true); err != nil {
		return err
	}
	sess.ReportDispatched = true
	return nil
}

// generate builds the provider transcript (recent turns, oldest first, with
// the behavioral system prompt at the head and the per-turn instruction at
// the tail) and calls the reply generator.
func (s *Service) generate(ctx context.Context, sess *Session, instruction string) (string, error) {
	provider, err := s.registry.Get(ctx, sess.Provider, sess.Model)
	if err != nil {
		return "", err
	}

	recentDesc, err := s.repo.ListRecentTurnsDesc(ctx, sess.UserID, sess.SessionID, s.window)
	if err != nil {
		return "", err
	}

	msgs := make([]ai.Message, 0, len(recentDesc)+2)
	for i := len(recentDesc) - 1; i >= 0; i-- {
		t := recentDesc[i]
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Content})
	}
	// the window may have trimmed the seeded system prompt off
	if len(msgs) == 0 || msgs[0].Role != "system" {
		msgs = append([]ai.Message{{Role: "system", Content: systemPrompt}}, msgs...)
	}
	msgs = append(msgs, ai.Message{Role: "system", Content: instruction})

	reply, err := provider.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: reply generation: %v", ErrCollaborator, err)
	}
	return reply, nil
}

func (s *Service) result(sess *Session, reply string) *TurnResult {
	fieldID := ""
	if sess.Cursor < s.schema.Len() {
		fieldID = s.schema.Field(sess.Cursor).ID
	}
	return &TurnResult{
		SessionID:        sess.SessionID,
		Reply:            reply,
		Phase:            Phase(sess.Phase),
		Cursor:           sess.Cursor,
		FieldID:          fieldID,
		ReportDispatched: sess.ReportDispatched,
	}
}

type SessionProgress struct {
	SessionID        string            `json:"session_id"`
	Phase            Phase             `json:"phase"`
	Cursor           int               `json:"cursor"`
	FieldID          string            `json:"field_id,omitempty"`
	ReportDispatched bool              `json:"report_dispatched"`
	Answers          map[string]string `json:"answers"`
}

func (s *Service) Progress(ctx context.Context, userID uint64, sessionID string) (*SessionProgress, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	answers, err := s.repo.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fieldID := ""
	if Phase(sess.Phase) != PhaseCompleted && sess.Cursor < s.schema.Len() {
		fieldID = s.schema.Field(sess.Cursor).ID
	}
	return &SessionProgress{
		SessionID:        sess.SessionID,
		Phase:            Phase(sess.Phase),
		Cursor:           sess.Cursor,
		FieldID:          fieldID,
		ReportDispatched: sess.ReportDispatched,
		Answers:          answers,
	}, nil
}

func (s *Service) ListTurns(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Turn, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListTurns(ctx, userID, sessionID, limit, beforeID)
}
