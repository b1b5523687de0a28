//go:build e2e
// +build e2e

// End-to-end flow over a real HTTP server: ticket redemption, the WebSocket
// stream, grading, and result retrieval. Storage is in-memory and Redis is
// miniredis, so the suite needs no external services.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/config"
	"github.com/proktor-id/proktor-backend/internal/handler"
	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
	"github.com/proktor-id/proktor-backend/internal/registry"
	"github.com/proktor-id/proktor-backend/internal/router"
	"github.com/proktor-id/proktor-backend/internal/service"
	"github.com/proktor-id/proktor-backend/internal/validator"
)

// ─── In-memory stores ───────────────────────────────────────────────

type memTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
}

func (s *memTicketStore) GetByCode(_ context.Context, code string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[code]
	if !ok {
		return nil, proctor.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTicketStore) Activate(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[code]; ok && t.Status == model.TicketStatusIssued {
		t.Status = model.TicketStatusActive
	}
	return nil
}

func (s *memTicketStore) Consume(_ context.Context, code string, res model.TicketResult, violationCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[code]
	if !ok || t.Status == model.TicketStatusConsumed {
		return false, nil
	}
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return false, err
	}
	finishedAt := res.FinishedAt
	score := res.Score
	reason := res.FinishReason
	t.Status = model.TicketStatusConsumed
	t.Answers = answers
	t.Score = &score
	t.FinishReason = &reason
	t.FinishedAt = &finishedAt
	t.ViolationCount = violationCount
	return true, nil
}

type memConfigStore struct{ configs map[string]*model.ExamConfiguration }

func (s *memConfigStore) GetExamConfig(_ context.Context, id string) (*model.ExamConfiguration, error) {
	cfg, ok := s.configs[id]
	if !ok {
		return nil, proctor.ErrConfigMissing
	}
	return cfg, nil
}

type memQuestionStore struct{ banks map[string][]model.Question }

func (s *memQuestionStore) ListByBank(_ context.Context, bankID string) ([]model.Question, error) {
	qs, ok := s.banks[bankID]
	if !ok {
		return nil, proctor.ErrQuestionSourceMissing
	}
	return qs, nil
}

// ─── Harness ────────────────────────────────────────────────────────

func newTestServer(t *testing.T) (*httptest.Server, *memTicketStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		GinMode:             "release",
		SessionTokenSecret:  "e2e-secret",
		SessionTokenExpiry:  time.Hour,
		DisqualifyThreshold: 3,
		MonitorPollInterval: 50 * time.Millisecond,
	}

	validator.Setup()

	tickets := &memTicketStore{tickets: map[string]*model.Ticket{
		"E2E123": {
			Code:         "E2E123",
			Status:       model.TicketStatusIssued,
			ExamConfigID: "cfg-1",
			StudentName:  "Siswa E2E",
		},
		"E2E456": {
			Code:         "E2E456",
			Status:       model.TicketStatusIssued,
			ExamConfigID: "cfg-1",
			StudentName:  "Siswa Nakal",
		},
	}}
	configs := &memConfigStore{configs: map[string]*model.ExamConfiguration{
		"cfg-1": {ID: "cfg-1", DurationMinutes: 30, QuestionBankID: "bank-1"},
	}}
	questions := &memQuestionStore{banks: map[string][]model.Question{
		"bank-1": {
			{ID: "q1", BankID: "bank-1", Prompt: "1+1?", QuestionType: model.QuestionTypeSingleChoice, CorrectAnswer: "A", OrderNum: 1},
			{ID: "q2", BankID: "bank-1", Prompt: "2+2?", QuestionType: model.QuestionTypeSingleChoice, CorrectAnswer: "B", OrderNum: 2},
		},
	}}

	log := zerolog.Nop()
	loader := proctor.NewLoader(tickets, configs, questions)
	reg := registry.New()
	sink := service.NewRedisViolationSink(rdb, log)
	tokenService := service.NewTokenService(cfg)
	sessionService := service.NewSessionService(cfg, loader, tickets, sink, reg, rdb, tokenService, log)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, tokenService, log, nil),
	}

	srv := httptest.NewServer(router.SetupRouter(tokenService, handlers, cfg))
	t.Cleanup(srv.Close)
	t.Cleanup(reg.CloseAll)
	return srv, tickets
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type startResponse struct {
	SessionID       string `json:"session_id"`
	Token           string `json:"token"`
	StudentName     string `json:"student_name"`
	Phase           string `json:"phase"`
	DurationSeconds int    `json:"duration_seconds"`
	Questions       []struct {
		ID string `json:"id"`
	} `json:"questions"`
	Resumed bool `json:"resumed"`
}

func startSession(t *testing.T, srv *httptest.Server, ticketCode string) (startResponse, int, *envelope) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"ticket_code": ticketCode})
	resp, err := http.Post(srv.URL+"/api/v1/exam/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	var sr startResponse
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &sr); err != nil {
			t.Fatalf("decode start data: %v", err)
		}
	}
	return sr, resp.StatusCode, &env
}

func dialStream(t *testing.T, srv *httptest.Server, sessionID, token string) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/exam/sessions/" + sessionID + "/stream?token=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gws.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

// waitEvent reads stream messages until one matches the wanted event name.
func waitEvent(t *testing.T, conn *gws.Conn, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read stream waiting for %q: %v", want, err)
		}
		if msg["event"] == want {
			return msg
		}
	}
	t.Fatalf("no %q event before deadline", want)
	return nil
}

// waitPhase reads phase events until the wanted phase is announced. Events
// published before the stream attached (the countdown transition) are
// buffered and replayed, so the first phase event is not necessarily the
// latest one.
func waitPhase(t *testing.T, conn *gws.Conn, want string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := waitEvent(t, conn, "phase")
		if msg["phase"] == want {
			return
		}
	}
	t.Fatalf("no phase %q before deadline", want)
}

func calmReport() proctor.EnvReport {
	return proctor.EnvReport{ViewportRatio: 1.0}
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestFullExamFlow(t *testing.T) {
	srv, tickets := newTestServer(t)

	// Redemption normalizes the code.
	sr, status, _ := startSession(t, srv, "  e2e123 ")
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", status)
	}
	if sr.Phase != "COUNTDOWN" {
		t.Fatalf("phase = %q, want COUNTDOWN", sr.Phase)
	}
	if sr.DurationSeconds != 30*60 {
		t.Fatalf("duration = %d, want 1800", sr.DurationSeconds)
	}
	if len(sr.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(sr.Questions))
	}

	// Snapshot endpoint honors the issued token.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/exam/sessions/"+sr.SessionID, nil)
	req.Header.Set("Authorization", "Bearer "+sr.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d, want 200", resp.StatusCode)
	}

	conn := dialStream(t, srv, sr.SessionID, sr.Token)

	send(t, conn, map[string]string{"action": "start"})
	waitPhase(t, conn, "IN_PROGRESS")

	send(t, conn, map[string]interface{}{"action": "env", "report": calmReport()})

	// One right, one wrong: score 50.
	send(t, conn, map[string]string{"action": "answer", "q_id": "q1", "ans": "A"})
	send(t, conn, map[string]string{"action": "answer", "q_id": "q2", "ans": "C"})
	send(t, conn, map[string]string{"action": "submit"})

	graded := waitEvent(t, conn, "graded")
	if got := graded["score"].(float64); got != 50 {
		t.Fatalf("score = %v, want 50", got)
	}
	if got := graded["finish_reason"]; got != "Selesai Normal" {
		t.Fatalf("finish_reason = %v", got)
	}

	stored, err := tickets.GetByCode(context.Background(), "E2E123")
	if err != nil {
		t.Fatalf("get stored ticket: %v", err)
	}
	if stored.Status != model.TicketStatusConsumed {
		t.Fatalf("ticket status = %s, want CONSUMED", stored.Status)
	}

	// Result endpoint serves the persisted outcome.
	res, err := http.Get(srv.URL + "/api/v1/exam/tickets/E2E123/result")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", res.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	var result struct {
		Score        int               `json:"score"`
		Answers      map[string]string `json:"answers"`
		FinishReason string            `json:"finish_reason"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result data: %v", err)
	}
	if result.Score != 50 || result.FinishReason != "Selesai Normal" {
		t.Fatalf("result = %+v", result)
	}
	if result.Answers["q1"] != "A" || result.Answers["q2"] != "C" {
		t.Fatalf("answers = %v", result.Answers)
	}

	// The consumed ticket cannot be redeemed again.
	_, status, errEnv := startSession(t, srv, "E2E123")
	if status != http.StatusConflict {
		t.Fatalf("reuse status = %d, want 409", status)
	}
	if errEnv.Error == nil || errEnv.Error.Code != "TICKET_ALREADY_USED" {
		t.Fatalf("reuse error = %+v", errEnv.Error)
	}
}

func TestDisqualificationFlow(t *testing.T) {
	srv, tickets := newTestServer(t)

	sr, status, _ := startSession(t, srv, "E2E456")
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", status)
	}

	conn := dialStream(t, srv, sr.SessionID, sr.Token)

	send(t, conn, map[string]string{"action": "start"})
	waitPhase(t, conn, "IN_PROGRESS")

	// A persistently hidden tab trips the monitor on every poll until the
	// third strike disqualifies.
	send(t, conn, map[string]interface{}{"action": "env", "report": proctor.EnvReport{
		Hidden:        true,
		ViewportRatio: 1.0,
	}})

	blocked := waitEvent(t, conn, "blocked")
	if got := blocked["reason"]; got != "Diskualifikasi Security" {
		t.Fatalf("blocked reason = %v", got)
	}

	graded := waitEvent(t, conn, "graded")
	if got := graded["score"].(float64); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
	if got := graded["finish_reason"]; got != "Diskualifikasi Security" {
		t.Fatalf("finish_reason = %v", got)
	}

	stored, err := tickets.GetByCode(context.Background(), "E2E456")
	if err != nil {
		t.Fatalf("get stored ticket: %v", err)
	}
	if stored.Status != model.TicketStatusConsumed {
		t.Fatalf("ticket status = %s, want CONSUMED", stored.Status)
	}
	if stored.ViolationCount != 3 {
		t.Fatalf("violation_count = %d, want 3", stored.ViolationCount)
	}
}

func TestUnknownTicketRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	_, status, env := startSession(t, srv, "NOPE99")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if env.Error == nil || env.Error.Code != "TICKET_NOT_FOUND" {
		t.Fatalf("error = %+v", env.Error)
	}
}
