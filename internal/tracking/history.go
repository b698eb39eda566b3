// Package tracking keeps a sqlite history of every variant capture attempt.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/util"
)

const (
	busyTimeout  = 5000 // ms
	maxOpenConns = 1
)

// ErrHistoryClosed is returned by a nil or closed history.
var ErrHistoryClosed = errors.New("history not open")

// Entry is one recorded variant attempt.
type Entry struct {
	ID          int64
	Series      string
	Season      string
	Code        string
	Branch      string
	Status      orchestrator.Status
	ManifestURL string
	Error       string
	RecordedAt  time.Time
}

// SeriesSummary aggregates the latest status of each variant of a series.
type SeriesSummary struct {
	Series   string
	Season   string
	Captured int
	Failed   int
	LastRun  time.Time
}

// History is the sqlite-backed outcome store.
type History struct {
	db       *sql.DB
	insertPS *sql.Stmt
	recentPS *sql.Stmt
	seriesPS *sql.Stmt
}

// Open opens (and creates) the history database at dbPath.
func Open(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}

	path := dbPath
	if runtime.GOOS == "windows" {
		path = strings.ReplaceAll(dbPath, "\\", "/")
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, busyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}
	db.SetMaxOpenConns(maxOpenConns)

	if err := initializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	h := &History{db: db}
	if err := h.prepare(); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

func initializeDatabase(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS capture_outcome (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		series       TEXT    NOT NULL,
		season       TEXT    NOT NULL DEFAULT '',
		code         TEXT    NOT NULL,
		branch       TEXT    NOT NULL CHECK(branch IN ('Sub', 'Dub')),
		status       TEXT    NOT NULL,
		manifest_url TEXT    NOT NULL DEFAULT '',
		error        TEXT    NOT NULL DEFAULT '',
		recorded_at  INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "schema creation failed")
	}

	idx := `CREATE INDEX IF NOT EXISTS idx_outcome_series
		ON capture_outcome(series, season, code, branch, id)`
	if _, err := db.Exec(idx); err != nil {
		return errors.Wrap(err, "index creation failed")
	}
	return nil
}

func (h *History) prepare() error {
	var err error
	h.insertPS, err = h.db.Prepare(`INSERT INTO capture_outcome (
		series, season, code, branch, status, manifest_url, error, recorded_at
	) VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return errors.Wrap(err, "insert preparation failed")
	}

	h.recentPS, err = h.db.Prepare(`SELECT
		id, series, season, code, branch, status, manifest_url, error, recorded_at
	FROM capture_outcome
	WHERE (? = '' OR series = ?)
	ORDER BY id DESC
	LIMIT ?`)
	if err != nil {
		return errors.Wrap(err, "recent preparation failed")
	}

	// Latest outcome per (series, season, code, branch), aggregated.
	h.seriesPS, err = h.db.Prepare(`SELECT
		o.series,
		o.season,
		SUM(CASE WHEN o.status IN ('captured', 'existing') THEN 1 ELSE 0 END),
		SUM(CASE WHEN o.status IN ('captured', 'existing') THEN 0 ELSE 1 END),
		MAX(o.recorded_at)
	FROM capture_outcome o
	JOIN (
		SELECT MAX(id) AS id FROM capture_outcome
		GROUP BY series, season, code, branch
	) latest ON latest.id = o.id
	GROUP BY o.series, o.season
	ORDER BY o.series, o.season`)
	if err != nil {
		return errors.Wrap(err, "summary preparation failed")
	}
	return nil
}

// Record implements orchestrator.Recorder.
func (h *History) Record(ctx context.Context, o orchestrator.Outcome) error {
	if h == nil || h.insertPS == nil {
		return ErrHistoryClosed
	}
	_, err := h.insertPS.ExecContext(ctx,
		o.Series,
		o.Season,
		o.Code,
		o.Branch,
		string(o.Status),
		o.ManifestURL,
		o.Error,
		time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "record outcome")
	}
	return nil
}

// Recent returns the newest entries, optionally limited to one series.
func (h *History) Recent(ctx context.Context, series string, limit int) ([]Entry, error) {
	if h == nil || h.recentPS == nil {
		return nil, ErrHistoryClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.recentPS.QueryContext(ctx, series, series, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			util.Debug("Error closing rows", "error", err)
		}
	}()

	list := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var status string
		var ts int64
		if err := rows.Scan(&e.ID, &e.Series, &e.Season, &e.Code, &e.Branch, &status, &e.ManifestURL, &e.Error, &ts); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		e.Status = orchestrator.Status(status)
		e.RecordedAt = time.Unix(ts, 0)
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration failed")
	}
	return list, nil
}

// Summaries aggregates the latest outcome of every variant per series and
// season.
func (h *History) Summaries(ctx context.Context) ([]SeriesSummary, error) {
	if h == nil || h.seriesPS == nil {
		return nil, ErrHistoryClosed
	}

	rows, err := h.seriesPS.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() { _ = rows.Close() }()

	var list []SeriesSummary
	for rows.Next() {
		var s SeriesSummary
		var ts int64
		if err := rows.Scan(&s.Series, &s.Season, &s.Captured, &s.Failed, &ts); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		s.LastRun = time.Unix(ts, 0)
		list = append(list, s)
	}
	return list, errors.Wrap(rows.Err(), "rows iteration failed")
}

// Close releases the statements and the database.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	var finalErr error
	for name, stmt := range map[string]*sql.Stmt{"insert": h.insertPS, "recent": h.recentPS, "summary": h.seriesPS} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			finalErr = errors.Wrapf(err, "%s statement close", name)
		}
	}
	if err := h.db.Close(); err != nil {
		finalErr = errors.Wrap(err, "database close")
	}
	h.db = nil
	h.insertPS, h.recentPS, h.seriesPS = nil, nil, nil
	return finalErr
}
