package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"imrmap/internal/domain"
	"imrmap/internal/summarize"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nilIfEmpty maps "" to a SQL NULL.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .imrmap) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *SqlStore) Path() string { return s.path }

func (s *SqlStore) migrate() error {
	// Check if schema_version table exists to detect database state.
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("schema_version table is empty; not an imrmap archive?")
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch v {
	case currentSchemaVersion:
		return nil // already at target
	default:
		return fmt.Errorf("unknown schema version %d (this build reads %d)", v, currentSchemaVersion)
	}
}

// freshInstall creates the current schema from scratch on an empty database.
func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin install tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

// CreateRun inserts r and returns its ID. An empty ID gets a fresh UUID;
// empty status and start time default to running and now.
func (s *SqlStore) CreateRun(r *Run) (string, error) {
	if r == nil {
		return "", errors.New("run is nil")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs(id, study, solver, formula, config, status, error, counties, observations, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Study, r.Solver, r.Formula, r.Config, r.Status, nilIfEmpty(r.Error),
		r.Counties, r.Observations, r.StartedAt, nilIfEmpty(r.FinishedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return r.ID, nil
}

// FinishRun sets the final status and finish time.
func (s *SqlStore) FinishRun(runID, status, errMsg string) error {
	res, err := s.db.Exec(
		"UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?",
		status, nilIfEmpty(errMsg), nowUTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

const runColumns = `id, study, solver, formula, config, status, error, counties, observations, started_at, finished_at`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var errMsg, finished sql.NullString
	if err := sc.Scan(&r.ID, &r.Study, &r.Solver, &r.Formula, &r.Config, &r.Status, &errMsg,
		&r.Counties, &r.Observations, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Error = nullStr(errMsg)
	r.FinishedAt = nullStr(finished)
	return &r, nil
}

// GetRun returns the run by id, or nil when there is none.
func (s *SqlStore) GetRun(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (s *SqlStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query("SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// --- Observations ---

// SaveObservations stores the long table of a run in order, each row with
// its county×period composite index.
func (s *SqlStore) SaveObservations(runID string, obs []domain.Observation) error {
	counties := make(map[domain.CountyID]struct{})
	for _, o := range obs {
		counties[o.County.ID] = struct{}{}
	}
	n := len(counties)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin observations tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT INTO observations(run_id, position, county_id, county_name, county_index, composite_index,
		   period_code, period_ord, period_label, births, deaths, deprivation, rate)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()
	for i, o := range obs {
		if _, err := stmt.Exec(runID, i, string(o.County.ID), o.County.Name, o.County.Index, o.CompositeIndex(n),
			o.Period.Code, o.Period.Ordinal, o.Period.Label,
			o.Births, o.Deaths, o.Deprivation, o.Rate); err != nil {
			return fmt.Errorf("insert observation %s: %w", o.Key(), err)
		}
	}
	if _, err := tx.Exec("UPDATE runs SET observations = ? WHERE id = ?", len(obs), runID); err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return tx.Commit()
}

// ListObservations returns a run's long table in composite-index order,
// which is the long table's own order.
func (s *SqlStore) ListObservations(runID string) ([]domain.Observation, error) {
	rows, err := s.db.Query(
		`SELECT county_id, county_name, county_index, period_code, period_ord, period_label,
		        births, deaths, deprivation, rate
		 FROM observations WHERE run_id = ? ORDER BY composite_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()
	var list []domain.Observation
	for rows.Next() {
		var o domain.Observation
		var id string
		if err := rows.Scan(&id, &o.County.Name, &o.County.Index, &o.Period.Code, &o.Period.Ordinal,
			&o.Period.Label, &o.Births, &o.Deaths, &o.Deprivation, &o.Rate); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.County.ID = domain.CountyID(id)
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	return list, nil
}

// --- Result tables ---

// SaveTable stores a result table and all of its cells. Saving a table
// name twice for one run replaces it.
func (s *SqlStore) SaveTable(runID string, t *summarize.Table) error {
	if t == nil {
		return errors.New("table is nil")
	}
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin table tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM result_cells WHERE run_id = ? AND table_name = ?", runID, t.Name); err != nil {
		return fmt.Errorf("clear cells: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM result_tables WHERE run_id = ? AND name = ?", runID, t.Name); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}
	var pos int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position) + 1, 0) FROM result_tables WHERE run_id = ?", runID).Scan(&pos); err != nil {
		return fmt.Errorf("next table position: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO result_tables(run_id, name, position, caption, stub, columns) VALUES(?, ?, ?, ?, ?, ?)",
		runID, t.Name, pos, t.Caption, t.Stub, string(cols),
	); err != nil {
		return fmt.Errorf("insert table %s: %w", t.Name, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO result_cells(run_id, table_name, row_pos, row_key, row_label, col_pos, point, lower, upper, bounded)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell insert: %w", err)
	}
	defer stmt.Close()
	for ri, r := range t.Rows {
		for ci, c := range r.Cells {
			bounded := 0
			if c.Bounded {
				bounded = 1
			}
			if _, err := stmt.Exec(runID, t.Name, ri, r.Key, r.Label, ci,
				c.Point, c.Lower, c.Upper, bounded); err != nil {
				return fmt.Errorf("insert cell %s[%d,%d]: %w", t.Name, ri, ci, err)
			}
		}
	}
	return tx.Commit()
}

// ListTables returns a run's tables in the order they were saved.
func (s *SqlStore) ListTables(runID string) ([]*summarize.Table, error) {
	rows, err := s.db.Query(
		"SELECT name, caption, stub, columns FROM result_tables WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tables []*summarize.Table
	for rows.Next() {
		var t summarize.Table
		var cols string
		if err := rows.Scan(&t.Name, &t.Caption, &t.Stub, &cols); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if err := json.Unmarshal([]byte(cols), &t.Columns); err != nil {
			rows.Close()
			return nil, fmt.Errorf("table %s columns: %w", t.Name, err)
		}
		tables = append(tables, &t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	for _, t := range tables {
		if err := s.loadCells(runID, t); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func (s *SqlStore) loadCells(runID string, t *summarize.Table) error {
	rows, err := s.db.Query(
		`SELECT row_pos, row_key, row_label, point, lower, upper, bounded
		 FROM result_cells WHERE run_id = ? AND table_name = ? ORDER BY row_pos, col_pos`,
		runID, t.Name)
	if err != nil {
		return fmt.Errorf("list cells: %w", err)
	}
	defer rows.Close()
	last := -1
	for rows.Next() {
		var pos, bounded int
		var key, label string
		var c summarize.Cell
		if err := rows.Scan(&pos, &key, &label, &c.Point, &c.Lower, &c.Upper, &bounded); err != nil {
			return fmt.Errorf("scan cell: %w", err)
		}
		c.Bounded = bounded == 1
		if pos != last {
			t.Rows = append(t.Rows, summarize.Row{Key: key, Label: label})
			last = pos
		}
		r := &t.Rows[len(t.Rows)-1]
		r.Cells = append(r.Cells, c)
	}
	return rows.Err()
}
