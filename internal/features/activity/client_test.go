package activity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/testutil"
)

func newTestClient(g *testutil.GitLab, perPage, maxPages int) *Client {
	return NewClient(ClientConfig{
		BaseURL:  g.URL(),
		Token:    g.Token,
		PerPage:  perPage,
		MaxPages: maxPages,
		Timeout:  5 * time.Second,
	}, nil)
}

func TestFetchTallyFollowsPagination(t *testing.T) {
	g := testutil.NewGitLab(t, "secret")
	var events []testutil.FakeEvent
	events = append(events, testutil.Repeat(testutil.Ev("pushed to", ""), 5)...)
	events = append(events, testutil.Repeat(testutil.Ev("opened", "Issue"), 3)...)
	events = append(events, testutil.Ev("closed", "Issue"))
	events = append(events, testutil.Repeat(testutil.Ev("opened", "MergeRequest"), 2)...)
	events = append(events, testutil.Ev("commented on", "Note"))
	g.SetEvents("42", events)

	c := newTestClient(g, 5, 10)
	tally, err := c.FetchTally(context.Background(), "42", Window{})
	if err != nil {
		t.Fatalf("FetchTally: %v", err)
	}

	want := ledger.Counts{ledger.Commit: 5, ledger.IssueOpened: 3, ledger.IssueSolved: 1, ledger.MergeRequest: 2, ledger.Comment: 1}
	for a, n := range want {
		if tally.Counts[a] != n {
			t.Errorf("%v = %d, want %d", a, tally.Counts[a], n)
		}
	}
	if tally.Seen != 12 {
		t.Errorf("seen=%d, want 12", tally.Seen)
	}
	// 12 событий по 5 на страницу = 3 запроса
	if got := g.Requests("42"); got != 3 {
		t.Errorf("requests=%d, want 3", got)
	}
}

func TestFetchTallyEmpty(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	c := newTestClient(g, 100, 10)

	tally, err := c.FetchTally(context.Background(), "7", Window{})
	if err != nil {
		t.Fatalf("FetchTally: %v", err)
	}
	if tally.Seen != 0 || tally.Counts.Total() != 0 {
		t.Fatalf("expected empty tally, got %+v", tally)
	}
}

func TestFetchTallyHTTPError(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	g.Fail("13", http.StatusInternalServerError)
	c := newTestClient(g, 100, 10)

	_, err := c.FetchTally(context.Background(), "13", Window{})
	if !errors.Is(err, common.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchTallyWrongToken(t *testing.T) {
	g := testutil.NewGitLab(t, "right")
	c := NewClient(ClientConfig{BaseURL: g.URL(), Token: "wrong"}, nil)

	_, err := c.FetchTally(context.Background(), "1", Window{})
	if !errors.Is(err, common.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchTallyMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.FetchTally(context.Background(), "1", Window{})
	if !errors.Is(err, common.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchTallyFailsWhenFeedExceedsMaxPages(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	g.SetEvents("5", testutil.Repeat(testutil.Ev("pushed to", ""), 10))
	c := newTestClient(g, 2, 3)

	tally, err := c.FetchTally(context.Background(), "5", Window{})
	if !errors.Is(err, common.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if tally != nil {
		t.Fatalf("truncated feed must not produce a tally, got %+v", tally)
	}
	if got := g.Requests("5"); got != 3 {
		t.Fatalf("requests=%d, want 3", got)
	}
}

func TestFetchTallyFeedFitsMaxPages(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	g.SetEvents("5", testutil.Repeat(testutil.Ev("pushed to", ""), 10))
	c := newTestClient(g, 2, 5)

	tally, err := c.FetchTally(context.Background(), "5", Window{})
	if err != nil {
		t.Fatalf("FetchTally: %v", err)
	}
	if tally.Seen != 10 {
		t.Fatalf("seen=%d, want 10", tally.Seen)
	}
}

func TestFetchTallyWatermarkStopsBeforeMaxPages(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	watermark := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := testutil.Repeat(testutil.Ev("pushed to", "").At(watermark.Add(time.Hour)), 3)
	events = append(events, testutil.Repeat(testutil.Ev("pushed to", "").At(watermark.Add(-time.Hour)), 20)...)
	g.SetEvents("5", events)
	c := newTestClient(g, 2, 2)

	tally, err := c.FetchTally(context.Background(), "5", Window{After: watermark, Until: watermark.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("FetchTally: %v", err)
	}
	if tally.Counts[ledger.Commit] != 3 {
		t.Fatalf("commits=%d, want 3", tally.Counts[ledger.Commit])
	}
}

func TestEventsEarlyBreak(t *testing.T) {
	g := testutil.NewGitLab(t, "")
	g.SetEvents("5", testutil.Repeat(testutil.Ev("pushed to", ""), 10))
	c := newTestClient(g, 2, 10)

	n := 0
	for _, err := range c.Events(context.Background(), "5") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
		if n == 3 {
			break
		}
	}
	if got := g.Requests("5"); got != 2 {
		t.Fatalf("lazy sequence fetched %d pages, want 2", got)
	}
}

func TestPageURL(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "https://gitlab.example.com/api/v4/"}, nil)

	if got, want := c.pageURL("42", 1), "https://gitlab.example.com/api/v4/users/42/events?per_page=100"; got != want {
		t.Errorf("pageURL(1) = %q, want %q", got, want)
	}
	if got, want := c.pageURL("42", 3), "https://gitlab.example.com/api/v4/users/42/events?page=3&per_page=100"; got != want {
		t.Errorf("pageURL(3) = %q, want %q", got, want)
	}
}

func TestFetchHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.FetchTally(context.Background(), "1", Window{})
	if !errors.Is(err, common.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed on timeout, got %v", err)
	}
}

func TestFetchTallyWindow(t *testing.T) {
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	g := testutil.NewGitLab(t, "")
	// от новых к старым, как отдаёт GitLab
	g.SetEvents("9", []testutil.FakeEvent{
		testutil.Ev("pushed to", "").At(base.Add(3 * time.Hour)),
		testutil.Ev("pushed to", "").At(base.Add(2 * time.Hour)),
		testutil.Ev("opened", "Issue").At(base.Add(2 * time.Hour)),
		testutil.Ev("pushed to", "").At(base.Add(time.Hour)),
		testutil.Ev("pushed to", "").At(base),
		testutil.Ev("pushed to", "").At(base),
	})
	c := newTestClient(g, 2, 10)

	w := Window{After: base.Add(time.Hour), Until: base.Add(150 * time.Minute)}
	tally, err := c.FetchTally(context.Background(), "9", w)
	if err != nil {
		t.Fatalf("FetchTally: %v", err)
	}
	if tally.Counts[ledger.Commit] != 1 || tally.Counts[ledger.IssueOpened] != 1 {
		t.Fatalf("counts=%v, want commit=1 issue_opened=1", tally.Counts)
	}
	if tally.Outside != 1 {
		t.Fatalf("outside=%d, want 1", tally.Outside)
	}
	// остановились на событии base+1h (страница 2), третью страницу не запрашивали
	if got := g.Requests("9"); got != 2 {
		t.Fatalf("requests=%d, want 2", got)
	}
}

func TestWindowContains(t *testing.T) {
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	w := Window{After: base, Until: base.Add(time.Hour)}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Time{}, true},
		{base, false},
		{base.Add(time.Second), true},
		{base.Add(time.Hour), true},
		{base.Add(time.Hour + time.Second), false},
	}
	for _, tc := range cases {
		if got := w.Contains(tc.at); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
	if !(Window{}).Contains(base) {
		t.Error("empty window must contain everything")
	}
}
