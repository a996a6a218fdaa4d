package monitor

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"medavatar/pkg/model"
)

// issueArchive persists abandoned and critical issues to a local sqlite
// file for post-mortem analysis. Everything is best-effort: a broken
// archive never blocks a tick.
type issueArchive struct {
	path string
	log  *zap.Logger
	once sync.Once
	db   *sql.DB
}

func newIssueArchive(path string, log *zap.Logger) *issueArchive {
	return &issueArchive{path: path, log: log}
}

func (a *issueArchive) init() {
	a.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
			a.log.Debug("archive mkdir failed", zap.Error(err))
			return
		}
		dsn := "file:" + a.path + "?_pragma=busy_timeout=5000"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			a.log.Debug("archive open failed", zap.Error(err))
			return
		}
		db.SetMaxOpenConns(1)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			a.log.Debug("archive ping failed", zap.Error(err))
			_ = db.Close()
			return
		}
		if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS issues(type TEXT, severity TEXT, description TEXT, fix_attempts INTEGER, auto_fixed INTEGER, ts INTEGER); CREATE INDEX IF NOT EXISTS idx_issues_ts ON issues(ts);`); err != nil {
			a.log.Debug("archive schema failed", zap.Error(err))
			_ = db.Close()
			return
		}
		a.db = db
	})
}

// Record writes one issue; failures are logged at debug and dropped.
func (a *issueArchive) Record(is model.Issue) {
	a.init()
	if a.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fixed := 0
	if is.AutoFixed {
		fixed = 1
	}
	_, _ = a.db.ExecContext(ctx,
		`INSERT INTO issues(type, severity, description, fix_attempts, auto_fixed, ts) VALUES(?,?,?,?,?,?)`,
		string(is.Type), string(is.Severity), is.Description, is.FixAttempts, fixed, is.Timestamp.Unix())
}

func (a *issueArchive) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
