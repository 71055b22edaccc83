package database

// schema is applied in order by Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		starts_at   TIMESTAMPTZ NOT NULL,
		ends_at     TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id          TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL REFERENCES events(id),
		name        TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		starts_at   TIMESTAMPTZ NOT NULL,
		ends_at     TIMESTAMPTZ NOT NULL,
		capacity    INTEGER CHECK (capacity IS NULL OR capacity >= 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_event ON activities(event_id, starts_at)`,
	`CREATE TABLE IF NOT EXISTS activity_tiers (
		activity_id TEXT NOT NULL REFERENCES activities(id),
		name        TEXT NOT NULL,
		name_key    TEXT NOT NULL,
		position    INTEGER NOT NULL,
		price       BIGINT NOT NULL CHECK (price >= 0),
		capacity    INTEGER CHECK (capacity IS NULL OR capacity >= 0),
		reserved    INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
		PRIMARY KEY (activity_id, name_key)
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		phone       TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'active',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		participant_id TEXT NOT NULL REFERENCES participants(id),
		activity_id    TEXT NOT NULL REFERENCES activities(id),
		event_id       TEXT NOT NULL REFERENCES events(id),
		tier           TEXT NOT NULL,
		price          BIGINT NOT NULL,
		payment_status TEXT NOT NULL,
		batch_id       TEXT NOT NULL,
		enrolled_at    TIMESTAMPTZ NOT NULL,
		paid_at        TIMESTAMPTZ,
		refunded_at    TIMESTAMPTZ,
		PRIMARY KEY (participant_id, activity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_batch ON enrollments(batch_id)`,
	`CREATE TABLE IF NOT EXISTS admission_records (
		participant_id TEXT NOT NULL REFERENCES participants(id),
		event_id       TEXT NOT NULL REFERENCES events(id),
		activity_id    TEXT NOT NULL DEFAULT '',
		method         TEXT NOT NULL CHECK (method IN ('physical', 'online')),
		confirmed_at   TIMESTAMPTZ NOT NULL,
		confirmed_by   TEXT NOT NULL,
		PRIMARY KEY (participant_id, event_id, activity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS survey_questions (
		id          TEXT PRIMARY KEY,
		label       TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS survey_options (
		question_id TEXT NOT NULL REFERENCES survey_questions(id),
		option      TEXT NOT NULL,
		position    INTEGER NOT NULL,
		count       BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0),
		PRIMARY KEY (question_id, option)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id       TEXT PRIMARY KEY,
		kind     TEXT NOT NULL,
		subject  TEXT NOT NULL,
		actor    TEXT NOT NULL,
		detail   JSONB,
		at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_kind_at ON audit_log(kind, at DESC)`,
}
