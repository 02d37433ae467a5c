package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/engine"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/store"
	"serotonyl.ru/devscore/internal/testutil"
)

const adminToken = "s3cret-token"

var adminHash string

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	adminHash, err = HashToken(adminToken)
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	report *engine.Report
	err    error
}

func (r *fakeRunner) RunBatch(context.Context) (*engine.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.report, r.err
}

var folded = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedCycle записывает статистику и награды пользователя в обход движка.
func seedCycle(t *testing.T, st store.Store, userID int64, points string, commits int64, awarded ...int64) {
	t.Helper()
	ctx := context.Background()
	err := st.InCycle(ctx, userID, func(c store.Cycle) error {
		s, err := c.LockStats(ctx)
		if err != nil {
			return err
		}
		s.TotalCommits = commits
		s.TotalPoints = decimal.RequireFromString(points)
		s.LastFoldedAt = folded
		if err := c.SaveStats(ctx, s); err != nil {
			return err
		}
		var awards []achievements.Award
		for _, id := range awarded {
			awards = append(awards, achievements.Award{UserID: userID, AchievementID: id, IsUnlocked: true, UnlockedAt: folded})
		}
		_, err = c.AppendAwards(ctx, awards)
		return err
	})
	if err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
}

type testAPI struct {
	router http.Handler
	runner *fakeRunner
	store  store.Store
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	st := testutil.OpenStore(t)
	runner := &fakeRunner{}
	return &testAPI{
		router: NewRouter(NewHandler(st, runner), opts),
		runner: runner,
		store:  st,
	}
}

func (a *testAPI) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, Options{})
	w := api.do("GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestLeaderboard(t *testing.T) {
	api := newTestAPI(t, Options{})
	users := testutil.SeedUsers(t, api.store, "anna", "boris", "vera")
	seedCycle(t, api.store, users[0].ID, "1.50", 6)
	seedCycle(t, api.store, users[2].ID, "4.25", 17, 1)

	w := api.do("GET", "/leaderboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	board := decode[[]standingResponse](t, w)
	if len(board) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(board))
	}
	want := []string{"vera", "anna", "boris"}
	for i, r := range board {
		if r.ExternalID != want[i] || r.Rank != i+1 {
			t.Fatalf("row %d: got %s rank %d, want %s", i, r.ExternalID, r.Rank, want[i])
		}
	}
	if !board[0].Points.Equal(decimal.RequireFromString("4.25")) || board[0].Awards != 1 || board[0].Actions != 17 {
		t.Fatalf("unexpected leader %+v", board[0])
	}

	w = api.do("GET", "/leaderboard?limit=1", nil)
	if board := decode[[]standingResponse](t, w); len(board) != 1 {
		t.Fatalf("limit=1 returned %d rows", len(board))
	}

	for _, q := range []string{"0", "-3", "abc"} {
		if w := api.do("GET", "/leaderboard?limit="+q, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestUserStats(t *testing.T) {
	api := newTestAPI(t, Options{})
	users := testutil.SeedUsers(t, api.store, "dev")
	seedCycle(t, api.store, users[0].ID, "2.25", 5)

	w := api.do("GET", "/users/1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[statsResponse](t, w)
	if got.ExternalID != "dev" || got.DisplayName != "@dev" || got.TotalCommits != 5 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if !got.TotalPoints.Equal(decimal.RequireFromString("2.25")) {
		t.Fatalf("points = %s, want 2.25", got.TotalPoints)
	}
	if got.LastFoldedAt == nil || !got.LastFoldedAt.Equal(folded) {
		t.Fatalf("last_folded_at = %v, want %v", got.LastFoldedAt, folded)
	}
}

func TestUserStatsBeforeFirstCycle(t *testing.T) {
	api := newTestAPI(t, Options{})
	testutil.SeedUsers(t, api.store, "fresh")

	w := api.do("GET", "/users/1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[statsResponse](t, w)
	if !got.TotalPoints.IsZero() || got.LastFoldedAt != nil {
		t.Fatalf("expected empty stats, got %+v", got)
	}
}

func TestUserErrors(t *testing.T) {
	api := newTestAPI(t, Options{})

	cases := []struct {
		path string
		code int
	}{
		{"/users/42/stats", http.StatusNotFound},
		{"/users/42/achievements", http.StatusNotFound},
		{"/users/abc/stats", http.StatusBadRequest},
		{"/users/0/achievements", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := api.do("GET", tc.path, nil); w.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.code, w.Code)
		}
	}
}

func TestUserAchievements(t *testing.T) {
	api := newTestAPI(t, Options{})
	testutil.SeedAchievements(t, api.store,
		achievements.Achievement{ID: 1, ActionType: ledger.Commit, NumberOfActions: 1, Name: "Первый push", Level: 1},
		achievements.Achievement{ID: 2, ActionType: ledger.Commit, NumberOfActions: 5, Name: "Разогрев", Level: 2},
	)
	users := testutil.SeedUsers(t, api.store, "dev")
	seedCycle(t, api.store, users[0].ID, "2.25", 5, 1, 2)

	w := api.do("GET", "/users/1/achievements", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[[]awardResponse](t, w)
	if len(got) != 2 {
		t.Fatalf("expected 2 awards, got %d", len(got))
	}
	if got[1].Name != "Разогрев" || got[1].ActionType != "commit" || got[1].NumberOfActions != 5 {
		t.Fatalf("unexpected award %+v", got[1])
	}
}

func TestRunRequiresToken(t *testing.T) {
	api := newTestAPI(t, Options{AdminTokenHash: adminHash})

	if w := api.do("POST", "/runs", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
	if w := api.do("POST", "/runs", map[string]string{AdminTokenHeader: "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", w.Code)
	}
	if api.runner.calls != 0 {
		t.Fatalf("runner must not be called without valid token")
	}
}

func TestRunDisabledWithoutHash(t *testing.T) {
	api := newTestAPI(t, Options{})
	if w := api.do("POST", "/runs", map[string]string{AdminTokenHeader: adminToken}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRunReport(t *testing.T) {
	api := newTestAPI(t, Options{AdminTokenHash: adminHash})
	api.runner.report = &engine.Report{
		RunID: uuid.New(),
		Results: []engine.UserResult{
			{UserID: 1, ExternalID: "a", Status: engine.StatusOK, NewAwards: []achievements.Award{{AchievementID: 1}}},
			{UserID: 2, ExternalID: "b", Status: engine.StatusFailed, Err: common.ErrFetchFailed},
		},
	}

	w := api.do("POST", "/runs", map[string]string{AdminTokenHeader: adminToken})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[runResponse](t, w)
	if got.Users != 2 || got.Succeeded != 1 || got.Failed != 1 || got.Awards != 1 {
		t.Fatalf("unexpected report %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].ExternalID != "b" {
		t.Fatalf("unexpected failures %+v", got.Failures)
	}
}

func TestRunInProgress(t *testing.T) {
	api := newTestAPI(t, Options{AdminTokenHash: adminHash})
	api.runner.err = common.ErrRunInProgress

	if w := api.do("POST", "/runs", map[string]string{AdminTokenHeader: adminToken}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRunRateLimited(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	t.Cleanup(rl.Close)
	api := newTestAPI(t, Options{AdminTokenHash: adminHash, RunLimiter: rl})
	api.runner.report = &engine.Report{}

	hdr := map[string]string{AdminTokenHeader: adminToken}
	if w := api.do("POST", "/runs", hdr); w.Code != http.StatusOK {
		t.Fatalf("first run: expected 200, got %d", w.Code)
	}
	w := api.do("POST", "/runs", hdr)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second run: expected 429, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), common.ErrTooManyRequests.Error()) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRecoveryFromPanic(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	req, _ := http.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request must be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("limits are per key")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window must slide")
	}
}

func TestVerifyToken(t *testing.T) {
	if !VerifyToken(adminToken, adminHash) {
		t.Fatal("valid token rejected")
	}
	if VerifyToken("other", adminHash) {
		t.Fatal("invalid token accepted")
	}
	for _, bad := range []string{"", "plain", "$argon2id$v=19$m=x$salt$hash", "$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA"} {
		if VerifyToken(adminToken, bad) {
			t.Fatalf("malformed hash %q accepted", bad)
		}
	}
	if _, err := HashToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestHandlerFailMapsUnknownErrors(t *testing.T) {
	api := newTestAPI(t, Options{AdminTokenHash: adminHash})
	api.runner.err = errors.New("boom")

	if w := api.do("POST", "/runs", map[string]string{AdminTokenHeader: adminToken}); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
