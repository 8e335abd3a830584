package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/frn-reports/voicereport/internal/ai"
	"github.com/frn-reports/voicereport/internal/report"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type scriptedProvider struct {
	err   error
	calls int
	last  []ai.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "ok", nil
}

type recordingDispatcher struct {
	err     error
	calls   int
	lastDoc []byte
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, filename string, doc []byte) error {
	_ = ctx
	_ = filename
	d.calls++
	if d.err != nil {
		return d.err
	}
	d.lastDoc = append([]byte(nil), doc...)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Turn{}, &Answer{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testSchema() report.Schema {
	return report.Schema{
		{ID: "incident_date", Prompt: "the date the incident occurred"},
		{ID: "incident_briefing", Prompt: "a brief description of what happened"},
	}
}

func newTestService(t *testing.T, db *gorm.DB, schema report.Schema, prov *scriptedProvider, disp *recordingDispatcher, greeting bool) *Service {
	t.Helper()
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return prov, nil
	})
	return NewService(NewRepo(db), reg, schema, report.NewAssembler(schema), disp, Options{
		Greeting:        greeting,
		ContextWindow:   20,
		DefaultProvider: "fake",
		DefaultModel:    "default",
	})
}

func TestTurn_CollectsFieldsInOrderAndDispatchesOnce(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	res, err := svc.Turn(ctx, 1, "sess-order", "2024-01-05")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if res.Cursor != 1 || res.Phase != PhaseCollecting {
		t.Fatalf("after turn 1: cursor=%d phase=%s", res.Cursor, res.Phase)
	}
	if res.FieldID != "incident_briefing" {
		t.Fatalf("after turn 1: field_id=%q", res.FieldID)
	}

	res, err = svc.Turn(ctx, 1, "sess-order", "broke a window")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Cursor != 2 || res.Phase != PhaseCompleted || !res.ReportDispatched {
		t.Fatalf("after turn 2: cursor=%d phase=%s dispatched=%v", res.Cursor, res.Phase, res.ReportDispatched)
	}
	if disp.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", disp.calls)
	}

	answers, err := NewRepo(db).ListAnswers(ctx, "sess-order")
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers["incident_date"] != "2024-01-05" || answers["incident_briefing"] != "broke a window" {
		t.Fatalf("unexpected answers: %v", answers)
	}

	// a further turn never mutates answers or re-dispatches
	res, err = svc.Turn(ctx, 1, "sess-order", "thanks")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if res.Cursor != 2 || res.Phase != PhaseCompleted {
		t.Fatalf("after turn 3: cursor=%d phase=%s", res.Cursor, res.Phase)
	}
	if disp.calls != 1 {
		t.Fatalf("expected dispatch to stay at 1, got %d", disp.calls)
	}
	answers, _ = NewRepo(db).ListAnswers(ctx, "sess-order")
	if len(answers) != 2 || answers["incident_briefing"] != "broke a window" {
		t.Fatalf("answers mutated after completion: %v", answers)
	}
}

func TestTurn_EmptyUtteranceDoesNotAdvance(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	res, err := svc.Turn(ctx, 1, "sess-empty", "   ")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Cursor != 0 || res.Phase != PhaseCollecting {
		t.Fatalf("cursor=%d phase=%s, want 0/collecting", res.Cursor, res.Phase)
	}
	if res.Reply == "" {
		t.Fatalf("expected a re-request reply")
	}

	answers, _ := NewRepo(db).ListAnswers(ctx, "sess-empty")
	if len(answers) != 0 {
		t.Fatalf("expected no answers, got %v", answers)
	}
}

func TestTurn_GreetingConsumesOneUtterance(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, true)
	ctx := context.Background()

	res, err := svc.Turn(ctx, 1, "sess-greet", "hello there")
	if err != nil {
		t.Fatalf("greeting turn: %v", err)
	}
	if res.Phase != PhaseCollecting || res.Cursor != 0 {
		t.Fatalf("after greeting: cursor=%d phase=%s", res.Cursor, res.Phase)
	}

	answers, _ := NewRepo(db).ListAnswers(ctx, "sess-greet")
	if len(answers) != 0 {
		t.Fatalf("greeting utterance stored as field data: %v", answers)
	}

	res, err = svc.Turn(ctx, 1, "sess-greet", "2024-01-05")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Cursor != 1 {
		t.Fatalf("after turn 2: cursor=%d, want 1", res.Cursor)
	}
	answers, _ = NewRepo(db).ListAnswers(ctx, "sess-greet")
	if answers["incident_date"] != "2024-01-05" {
		t.Fatalf("unexpected answers: %v", answers)
	}
}

func TestTurn_GenerationFailureKeepsSuppliedAnswer(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{err: errors.New("quota exceeded")}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	_, err := svc.Turn(ctx, 1, "sess-genfail", "2024-01-05")
	if !errors.Is(err, ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}

	// the supplied answer is never rolled back
	answers, _ := NewRepo(db).ListAnswers(ctx, "sess-genfail")
	if answers["incident_date"] != "2024-01-05" {
		t.Fatalf("answer lost on generation failure: %v", answers)
	}
	sess, err := NewRepo(db).GetSessionBySessionID(ctx, "sess-genfail")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Cursor != 1 {
		t.Fatalf("cursor=%d, want 1", sess.Cursor)
	}

	// no assistant turn was appended
	var assistantCount int64
	if err := db.Model(&Turn{}).
		Where("session_id = ? AND role = ?", "sess-genfail", "assistant").
		Count(&assistantCount).Error; err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if assistantCount != 0 {
		t.Fatalf("expected no assistant turns, got %d", assistantCount)
	}
}

func TestTurn_DispatchFailureIsRetryable(t *testing.T) {
	db := openTestDB(t)
	schema := report.Schema{{ID: "incident_briefing", Prompt: "a brief description of what happened"}}
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{err: errors.New("smtp down")}
	svc := newTestService(t, db, schema, prov, disp, false)
	ctx := context.Background()

	_, err := svc.Turn(ctx, 1, "sess-dispatch", "broke a window")
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}

	sess, err := NewRepo(db).GetSessionBySessionID(ctx, "sess-dispatch")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if Phase(sess.Phase) != PhaseCompleted || sess.ReportDispatched {
		t.Fatalf("phase=%s dispatched=%v, want completed/false", sess.Phase, sess.ReportDispatched)
	}

	// next turn retries the handoff with the same data
	disp.err = nil
	res, err := svc.Turn(ctx, 1, "sess-dispatch", "is it sent?")
	if err != nil {
		t.Fatalf("retry turn: %v", err)
	}
	if !res.ReportDispatched {
		t.Fatalf("expected report dispatched after retry")
	}
	if disp.calls != 2 {
		t.Fatalf("expected 2 dispatch attempts, got %d", disp.calls)
	}

	answers, _ := NewRepo(db).ListAnswers(ctx, "sess-dispatch")
	if answers["incident_briefing"] != "broke a window" {
		t.Fatalf("answers changed across retry: %v", answers)
	}

	// and a further turn must not dispatch again
	if _, err := svc.Turn(ctx, 1, "sess-dispatch", "thanks"); err != nil {
		t.Fatalf("closing turn: %v", err)
	}
	if disp.calls != 2 {
		t.Fatalf("duplicate dispatch: %d calls", disp.calls)
	}
}

func TestTurn_SessionsDoNotInterleaveAnswers(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	if _, err := svc.Turn(ctx, 1, "sess-a", "monday"); err != nil {
		t.Fatalf("a1: %v", err)
	}
	if _, err := svc.Turn(ctx, 1, "sess-b", "friday"); err != nil {
		t.Fatalf("b1: %v", err)
	}
	if _, err := svc.Turn(ctx, 1, "sess-a", "flood"); err != nil {
		t.Fatalf("a2: %v", err)
	}
	if _, err := svc.Turn(ctx, 1, "sess-b", "fire"); err != nil {
		t.Fatalf("b2: %v", err)
	}

	repo := NewRepo(db)
	a, _ := repo.ListAnswers(ctx, "sess-a")
	b, _ := repo.ListAnswers(ctx, "sess-b")
	if a["incident_date"] != "monday" || a["incident_briefing"] != "flood" {
		t.Fatalf("sess-a answers: %v", a)
	}
	if b["incident_date"] != "friday" || b["incident_briefing"] != "fire" {
		t.Fatalf("sess-b answers: %v", b)
	}
}

func TestTurn_HidesSessionsOfOtherUsers(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	if _, err := svc.Turn(ctx, 1, "sess-owned", "monday"); err != nil {
		t.Fatalf("owner turn: %v", err)
	}
	_, err := svc.Turn(ctx, 2, "sess-owned", "tuesday")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found for foreign user, got %v", err)
	}
}

func TestTurn_ProviderSeesSystemPromptAndInstruction(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	if _, err := svc.Turn(ctx, 1, "sess-prompt", "2024-01-05"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(prov.last) < 3 {
		t.Fatalf("expected at least 3 provider messages, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" {
		t.Fatalf("first provider message role=%q, want system", prov.last[0].Role)
	}
	tail := prov.last[len(prov.last)-1]
	if tail.Role != "system" {
		t.Fatalf("last provider message role=%q, want system instruction", tail.Role)
	}
}

func TestTurn_CursorOutOfBoundsIsInvariantError(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	disp := &recordingDispatcher{}
	svc := newTestService(t, db, testSchema(), prov, disp, false)
	ctx := context.Background()

	if _, err := svc.Turn(ctx, 1, "sess-broken", "monday"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	// corrupt the session behind the machine's back
	if err := db.Model(&Session{}).
		Where("session_id = ?", "sess-broken").
		Update("cursor", 99).Error; err != nil {
		t.Fatalf("corrupt session: %v", err)
	}

	_, err := svc.Turn(ctx, 1, "sess-broken", "flood")
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}
