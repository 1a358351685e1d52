package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_events (
	id         TEXT PRIMARY KEY,
	issue_key  TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	auto       INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_issue_key ON automation_events(issue_key);
CREATE INDEX IF NOT EXISTS idx_events_created ON automation_events(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
