package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeEvent — событие в формате GitLab Events API.
type FakeEvent struct {
	ID         int64   `json:"id"`
	ActionName string  `json:"action_name"`
	TargetType *string `json:"target_type"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// Ev создаёт событие; пустой target даёт null в JSON.
func Ev(action, target string) FakeEvent {
	e := FakeEvent{ActionName: action}
	if target != "" {
		e.TargetType = &target
	}
	return e
}

// At возвращает копию события с датой создания.
func (e FakeEvent) At(t time.Time) FakeEvent {
	e.CreatedAt = t.UTC().Format("2006-01-02T15:04:05.000Z")
	return e
}

// Repeat повторяет событие n раз.
func Repeat(e FakeEvent, n int) []FakeEvent {
	out := make([]FakeEvent, n)
	for i := range out {
		out[i] = e
	}
	return out
}

// GitLab — поддельный GitLab Events API с пагинацией через X-Next-Page.
type GitLab struct {
	Server *httptest.Server
	Token  string

	mu       sync.Mutex
	events   map[string][]FakeEvent
	failing  map[string]int // externalID → HTTP-статус ошибки
	requests map[string]int
}

// NewGitLab запускает сервер и закрывает его по завершении теста.
func NewGitLab(t *testing.T, token string) *GitLab {
	t.Helper()

	g := &GitLab{
		Token:    token,
		events:   make(map[string][]FakeEvent),
		failing:  make(map[string]int),
		requests: make(map[string]int),
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Server.Close)
	return g
}

// URL возвращает базовый адрес API.
func (g *GitLab) URL() string { return g.Server.URL + "/api/v4" }

// SetEvents задаёт события пользователя (заменяя прежние).
func (g *GitLab) SetEvents(externalID string, events []FakeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[externalID] = events
}

// Fail заставляет сервер отвечать ошибкой status для пользователя.
func (g *GitLab) Fail(externalID string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing[externalID] = status
}

// Requests возвращает число запросов по пользователю.
func (g *GitLab) Requests(externalID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[externalID]
}

func (g *GitLab) serve(w http.ResponseWriter, r *http.Request) {
	// /api/v4/users/{id}/events
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[2] != "users" || parts[4] != "events" {
		http.NotFound(w, r)
		return
	}
	id := parts[3]

	if g.Token != "" && r.Header.Get("Authorization") != "Bearer "+g.Token {
		http.Error(w, `{"message":"401 Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	g.mu.Lock()
	g.requests[id]++
	status, failing := g.failing[id]
	events := g.events[id]
	g.mu.Unlock()

	if failing {
		http.Error(w, `{"message":"boom"}`, status)
		return
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 20
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	if start > len(events) {
		start = len(events)
	}
	end := start + perPage
	if end > len(events) {
		end = len(events)
	}
	if end < len(events) {
		w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
	} else {
		w.Header().Set("X-Next-Page", "")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events[start:end])
}
