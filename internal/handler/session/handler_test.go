package session

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/service/render"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
)

func setupRouter(t *testing.T) (*chi.Mux, *sessionService.Service) {
	t.Helper()
	sessions := sessionService.NewService(sessionService.Options{
		Rand: func() *rand.Rand { return rand.New(rand.NewPCG(7, 7)) },
	})
	renderSvc, err := render.NewService(context.Background(), nil, rand.New(rand.NewPCG(1, 1)), nil)
	if err != nil {
		t.Fatalf("render.NewService err: %v", err)
	}
	handler := New(sessions, NewTurnRunner(sessions, renderSvc, nil, nil), nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, sessions
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) chat.Session {
	t.Helper()
	resp := doJSON(r, http.MethodPost, "/session", `{}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var session chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

func TestCreateSessionDefaultPersona(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)
	if session.ID == "" || session.PersonaID != "xiaozhi" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateSessionEmptyBody(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(t)
	resp := doJSON(r, http.MethodPost, "/session", `{"personaId":"non-existent"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnExecutable(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	resp := doJSON(r, http.MethodPost, "/session/"+session.ID+"/turns", `{"text":"过来"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		TurnID   string `json:"turnId"`
		Decision struct {
			Kind       string `json:"kind"`
			Executable struct {
				Action  string `json:"action"`
				Command string `json:"command"`
			} `json:"executable"`
		} `json:"decision"`
		Emotion struct {
			Emotion string `json:"emotion"`
		} `json:"emotion"`
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Decision.Kind != "executable" || result.Decision.Executable.Action != "move_to_target" {
		t.Fatalf("unexpected decision: %+v", result.Decision)
	}
	if result.Decision.Executable.Command != "come" {
		t.Fatalf("unexpected command: %s", result.Decision.Executable.Command)
	}
	if result.Emotion.Emotion != "excited" {
		t.Fatalf("unexpected emotion: %s", result.Emotion.Emotion)
	}
	if result.Reply == "" || result.TurnID == "" {
		t.Fatalf("expected reply and turn id, got %+v", result)
	}
}

func TestTurnRejectedWithScene(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	body := `{"text":"过来","scene":{"obstacles":[{"distance":0.5}]}}`
	resp := doJSON(r, http.MethodPost, "/session/"+session.ID+"/turns", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var result struct {
		Decision struct {
			Kind     string `json:"kind"`
			Rejected struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"rejected"`
		} `json:"decision"`
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Decision.Kind != "rejected" || result.Decision.Rejected.Code != "unsafe_environment" {
		t.Fatalf("unexpected decision: %+v", result.Decision)
	}
	if result.Reply != result.Decision.Rejected.Message {
		t.Fatalf("reply should be the rejection message, got %q", result.Reply)
	}
}

func TestTurnValidation(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)
	path := "/session/" + session.ID + "/turns"

	cases := map[string]string{
		"missing text": `{}`,
		"too long":     `{"text":"` + strings.Repeat("啊", 501) + `"}`,
		"malformed":    `{"text":`,
	}
	for name, body := range cases {
		if resp := doJSON(r, http.MethodPost, path, body); resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.Code)
		}
	}
}

func TestTurnUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)
	resp := doJSON(r, http.MethodPost, "/session/missing/turns", `{"text":"你好"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestTranscriptAndState(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)
	for _, text := range []string{"你好", "向左"} {
		doJSON(r, http.MethodPost, "/session/"+session.ID+"/turns", `{"text":"`+text+`"}`)
	}

	resp := doJSON(r, http.MethodGet, "/session/"+session.ID+"/turns", "")
	var turns []chat.Turn
	if err := json.NewDecoder(bytes.NewReader(resp.Body.Bytes())).Decode(&turns); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "你好" || turns[1].Action != "move_left" {
		t.Fatalf("unexpected transcript: %+v", turns)
	}

	resp = doJSON(r, http.MethodGet, "/session/"+session.ID, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var state struct {
		State struct {
			Commands []string `json:"commands"`
		} `json:"state"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.State.Commands) != 1 || state.State.Commands[0] != "left" {
		t.Fatalf("unexpected command history: %+v", state.State.Commands)
	}
}

func TestCloseSession(t *testing.T) {
	r, _ := setupRouter(t)
	session := createSession(t, r)

	if resp := doJSON(r, http.MethodDelete, "/session/"+session.ID, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := doJSON(r, http.MethodGet, "/session/"+session.ID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
