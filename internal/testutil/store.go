package testutil

import (
	"context"
	"testing"

	"serotonyl.ru/devscore/internal/db/sqlite"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/members"
)

// OpenStore открывает хранилище SQLite в памяти и закрывает его по завершении теста.
func OpenStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedUsers заводит пользователей с указанными внешними ID.
func SeedUsers(t *testing.T, s members.Directory, externalIDs ...string) []members.User {
	t.Helper()

	users := make([]members.User, 0, len(externalIDs))
	for _, id := range externalIDs {
		u := members.User{ExternalID: id}
		if err := s.UpsertUser(context.Background(), &u); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
		users = append(users, u)
	}
	return users
}

// SeedAchievements записывает каталог.
func SeedAchievements(t *testing.T, s interface {
	SyncAchievements(context.Context, []achievements.Achievement) error
}, defs ...achievements.Achievement) {
	t.Helper()

	if err := s.SyncAchievements(context.Background(), defs); err != nil {
		t.Fatalf("seed achievements: %v", err)
	}
}
