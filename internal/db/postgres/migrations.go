package postgres

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Users},
	{2, migration002Achievements},
	{3, migration003Ledger},
	{4, migration004Stats},
	{5, migration005Awards},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    external_id VARCHAR(255) UNIQUE NOT NULL,
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`

var migration002Achievements = `
CREATE TABLE IF NOT EXISTS achievements (
    id BIGINT PRIMARY KEY,
    action_type SMALLINT NOT NULL CHECK (action_type BETWEEN 1 AND 5),
    number_of_actions BIGINT NOT NULL CHECK (number_of_actions > 0),
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`

var migration003Ledger = `
CREATE TABLE IF NOT EXISTS user_transactions (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    action_type SMALLINT NOT NULL CHECK (action_type BETWEEN 1 AND 5),
    fetch_date TIMESTAMPTZ NOT NULL,
    value BIGINT NOT NULL CHECK (value >= 0),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (user_id, action_type, fetch_date)
);
CREATE INDEX IF NOT EXISTS idx_user_transactions_fetch ON user_transactions(user_id, fetch_date);
`

var migration004Stats = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_commits BIGINT NOT NULL DEFAULT 0,
    total_issues_created BIGINT NOT NULL DEFAULT 0,
    total_issues_solved BIGINT NOT NULL DEFAULT 0,
    total_merge_requests BIGINT NOT NULL DEFAULT 0,
    total_comments BIGINT NOT NULL DEFAULT 0,
    total_points NUMERIC(20, 2) NOT NULL DEFAULT 0,
    last_folded_at TIMESTAMPTZ NOT NULL DEFAULT '0001-01-01 00:00:00+00',
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_stats_points ON user_stats(total_points DESC);
`

var migration005Awards = `
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    achievement_id BIGINT NOT NULL REFERENCES achievements(id),
    is_unlocked BOOLEAN NOT NULL DEFAULT TRUE,
    unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, achievement_id)
);
`
