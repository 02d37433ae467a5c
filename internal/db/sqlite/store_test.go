package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
	"serotonyl.ru/devscore/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addUser(t *testing.T, s *Store, externalID string) members.User {
	t.Helper()
	u := members.User{ExternalID: externalID, DisplayName: "dev " + externalID}
	if err := s.UpsertUser(context.Background(), &u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	return u
}

func TestUpsertUser(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a := addUser(t, s, "100")
	if a.ID == 0 {
		t.Fatal("ID must be assigned")
	}

	again := members.User{ExternalID: "100", DisplayName: "renamed"}
	if err := s.UpsertUser(ctx, &again); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if again.ID != a.ID {
		t.Fatalf("upsert created a new row: %d vs %d", again.ID, a.ID)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].DisplayName != "renamed" {
		t.Fatalf("users=%+v", users)
	}

	if _, err := s.GetUser(ctx, 999); !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSyncAchievements(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	defs := []achievements.Achievement{
		{ID: 2, ActionType: ledger.Comment, NumberOfActions: 10, Name: "b"},
		{ID: 1, ActionType: ledger.Commit, NumberOfActions: 5, Name: "a", Level: 1},
	}
	if err := s.SyncAchievements(ctx, defs); err != nil {
		t.Fatalf("SyncAchievements: %v", err)
	}
	defs[1].NumberOfActions = 7
	if err := s.SyncAchievements(ctx, defs); err != nil {
		t.Fatalf("SyncAchievements (update): %v", err)
	}

	got, err := s.ListAchievements(ctx)
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[0].NumberOfActions != 7 || got[0].ActionType != ledger.Commit {
		t.Fatalf("achievements=%+v", got)
	}
}

func TestCycleRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u := addUser(t, s, "1")
	if err := s.SyncAchievements(ctx, []achievements.Achievement{
		{ID: 1, ActionType: ledger.Commit, NumberOfActions: 5, Name: "a"},
	}); err != nil {
		t.Fatal(err)
	}

	fetch := time.Date(2026, 10, 16, 9, 0, 0, 123456000, time.UTC)
	counts := ledger.Counts{ledger.Commit: 5, ledger.IssueOpened: 3, ledger.IssueSolved: 1, ledger.MergeRequest: 2, ledger.Comment: 1}

	err := s.InCycle(ctx, u.ID, func(c store.Cycle) error {
		st, err := c.LockStats(ctx)
		if err != nil {
			return err
		}
		if !st.LastFoldedAt.IsZero() {
			t.Errorf("fresh watermark must be zero, got %v", st.LastFoldedAt)
		}
		n, err := c.AppendTransactions(ctx, ledger.Record(u.ID, counts, fetch))
		if err != nil {
			return err
		}
		if n != 5 {
			t.Errorf("inserted=%d, want 5", n)
		}
		pending, err := c.UnfoldedTransactions(ctx, st.LastFoldedAt)
		if err != nil {
			return err
		}
		st, _ = stats.Fold(st, pending)
		if err := c.SaveStats(ctx, st); err != nil {
			return err
		}
		_, err = c.AppendAwards(ctx, []achievements.Award{{UserID: u.ID, AchievementID: 1, IsUnlocked: true, UnlockedAt: fetch}})
		return err
	})
	if err != nil {
		t.Fatalf("InCycle: %v", err)
	}

	st, err := s.GetStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.TotalCommits != 5 || st.TotalIssuesCreated != 3 || st.TotalIssuesSolved != 1 ||
		st.TotalMergeRequests != 2 || st.TotalComments != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if !st.LastFoldedAt.Equal(fetch) {
		t.Fatalf("watermark=%v, want %v", st.LastFoldedAt, fetch)
	}
	if !st.TotalPoints.Equal(decimal.RequireFromString("2.25")) {
		t.Fatalf("points=%s", st.TotalPoints)
	}

	awards, err := s.ListAwards(ctx, u.ID)
	if err != nil || len(awards) != 1 || !awards[0].UnlockedAt.Equal(fetch) {
		t.Fatalf("awards=%+v err=%v", awards, err)
	}
}

func TestCycleAppendsAreIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u := addUser(t, s, "1")
	if err := s.SyncAchievements(ctx, []achievements.Achievement{
		{ID: 1, ActionType: ledger.Commit, NumberOfActions: 1, Name: "a"},
	}); err != nil {
		t.Fatal(err)
	}
	rows := ledger.Record(u.ID, ledger.Counts{ledger.Commit: 1}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	award := []achievements.Award{{UserID: u.ID, AchievementID: 1, IsUnlocked: true, UnlockedAt: time.Now()}}

	for i, wantRows := range []int{5, 0} {
		err := s.InCycle(ctx, u.ID, func(c store.Cycle) error {
			n, err := c.AppendTransactions(ctx, rows)
			if err != nil {
				return err
			}
			if n != wantRows {
				t.Errorf("pass %d: inserted rows=%d, want %d", i, n, wantRows)
			}
			n, err = c.AppendAwards(ctx, award)
			if err != nil {
				return err
			}
			if n != 1-i {
				t.Errorf("pass %d: inserted awards=%d, want %d", i, n, 1-i)
			}
			idx, err := c.AwardIndex(ctx)
			if err != nil {
				return err
			}
			if !idx.Has(achievements.AwardKey{UserID: u.ID, AchievementID: 1}) {
				t.Errorf("pass %d: award missing from index", i)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("InCycle: %v", err)
		}
	}
}

func TestInCycleRollsBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u := addUser(t, s, "1")
	boom := errors.New("boom")

	err := s.InCycle(ctx, u.ID, func(c store.Cycle) error {
		st, err := c.LockStats(ctx)
		if err != nil {
			return err
		}
		if _, err := c.AppendTransactions(ctx, ledger.Record(u.ID, ledger.Counts{ledger.Commit: 9}, time.Now())); err != nil {
			return err
		}
		st.TotalCommits = 9
		if err := c.SaveStats(ctx, st); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, common.ErrPersistenceWriteFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped ErrPersistenceWriteFailed, got %v", err)
	}

	st, err := s.GetStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.TotalCommits != 0 {
		t.Fatalf("stats leaked from rolled back cycle: %+v", st)
	}
	err = s.InCycle(ctx, u.ID, func(c store.Cycle) error {
		rows, err := c.UnfoldedTransactions(ctx, time.Time{})
		if len(rows) != 0 {
			t.Errorf("ledger rows leaked: %d", len(rows))
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUnfoldedTransactionsAfterWatermark(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u := addUser(t, s, "1")
	t1 := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Microsecond)

	err := s.InCycle(ctx, u.ID, func(c store.Cycle) error {
		if _, err := c.AppendTransactions(ctx, ledger.Record(u.ID, ledger.Counts{}, t1)); err != nil {
			return err
		}
		if _, err := c.AppendTransactions(ctx, ledger.Record(u.ID, ledger.Counts{}, t2)); err != nil {
			return err
		}
		rows, err := c.UnfoldedTransactions(ctx, t1)
		if err != nil {
			return err
		}
		if len(rows) != 5 {
			t.Fatalf("rows after t1: %d, want 5", len(rows))
		}
		for _, r := range rows {
			if !r.FetchDate.Equal(t2) {
				t.Errorf("row at %v, want %v", r.FetchDate, t2)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLockStatsUnknownUser(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	err := s.InCycle(ctx, 404, func(c store.Cycle) error {
		_, err := c.LockStats(ctx)
		return err
	})
	if !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetStats(ctx, 404); !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("GetStats: expected ErrUserNotFound, got %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	fetch := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	scores := map[string]ledger.Counts{
		"a": {ledger.Comment: 1},       // 0.05
		"b": {ledger.MergeRequest: 30}, // 10.50
		"c": {ledger.IssueSolved: 3},   // 0.90
		"d": {ledger.Commit: 20},       // 3.00
	}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		u := addUser(t, s, id)
		counts, ok := scores[id]
		if !ok {
			continue
		}
		err := s.InCycle(ctx, u.ID, func(c store.Cycle) error {
			st, err := c.LockStats(ctx)
			if err != nil {
				return err
			}
			rows := ledger.Record(u.ID, counts, fetch)
			if _, err := c.AppendTransactions(ctx, rows); err != nil {
				return err
			}
			st, _ = stats.Fold(st, rows)
			return c.SaveStats(ctx, st)
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	board, err := s.Leaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	want := []string{"b", "d", "c"}
	if len(board) != len(want) {
		t.Fatalf("board=%+v", board)
	}
	for i, ext := range want {
		if board[i].ExternalID != ext || board[i].Rank != i+1 {
			t.Errorf("rank %d = %s, want %s", i+1, board[i].ExternalID, ext)
		}
	}
	if !board[0].Points.Equal(decimal.RequireFromString("10.5")) || board[0].Actions != 30 {
		t.Errorf("leader=%+v", board[0])
	}
}
