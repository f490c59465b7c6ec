package store

// schemaVersionV1 is the first archive layout.
const schemaVersionV1 = 1

// schemaV1 is the archive DDL (fresh install).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	study         TEXT NOT NULL DEFAULT '',
	solver        TEXT NOT NULL,
	formula       TEXT NOT NULL DEFAULT '',
	config        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'running',
	error         TEXT,
	counties      INTEGER NOT NULL DEFAULT 0,
	observations  INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS observations (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	county_id     TEXT NOT NULL,
	county_name   TEXT NOT NULL DEFAULT '',
	county_index  INTEGER NOT NULL,
	composite_index INTEGER NOT NULL,
	period_code   TEXT NOT NULL,
	period_ord    INTEGER NOT NULL,
	period_label  TEXT NOT NULL DEFAULT '',
	births        REAL NOT NULL,
	deaths        REAL NOT NULL,
	deprivation   REAL NOT NULL,
	rate          REAL NOT NULL,
	PRIMARY KEY (run_id, county_id, period_ord),
	UNIQUE (run_id, composite_index)
);

CREATE TABLE IF NOT EXISTS result_tables (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	position  INTEGER NOT NULL,
	caption   TEXT NOT NULL DEFAULT '',
	stub      TEXT NOT NULL DEFAULT '',
	columns   TEXT NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS result_cells (
	run_id     TEXT NOT NULL,
	table_name TEXT NOT NULL,
	row_pos    INTEGER NOT NULL,
	row_key    TEXT NOT NULL,
	row_label  TEXT NOT NULL,
	col_pos    INTEGER NOT NULL,
	point      REAL NOT NULL,
	lower      REAL NOT NULL,
	upper      REAL NOT NULL,
	bounded    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, table_name, row_pos, col_pos),
	FOREIGN KEY (run_id, table_name) REFERENCES result_tables(run_id, name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
