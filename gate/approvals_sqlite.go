package gate

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/navbuddy/navbuddy/intent"
)

type SQLiteApprovalStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteApprovalStore(dsn string) (*SQLiteApprovalStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	s := &SQLiteApprovalStore{dsn: dsn}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteApprovalStore) Create(ctx context.Context, rec ApprovalRecord) (string, error) {
	if s == nil {
		return "", fmt.Errorf("nil approval store")
	}
	if err := s.ensureOpen(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(5 * time.Minute)
	}
	rec.Status = ApprovalPending

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = "apr_" + randHex(12)
	}

	pathsJSON, _ := json.Marshal(rec.Paths)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO navigator_approvals (
  id, request_id, created_at_unix, expires_at_unix, resolved_at_unix,
  status, actor, comment,
  kind, paths_json, summary, user_text
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, strings.TrimSpace(rec.RequestID), rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(), nullTimeUnix(rec.ResolvedAt),
		string(rec.Status), strings.TrimSpace(rec.Actor), strings.TrimSpace(rec.Comment),
		string(rec.Kind), string(pathsJSON), strings.TrimSpace(rec.Summary), rec.UserText,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteApprovalStore) Get(ctx context.Context, id string) (ApprovalRecord, bool, error) {
	if s == nil {
		return ApprovalRecord{}, false, fmt.Errorf("nil approval store")
	}
	if err := s.ensureOpen(); err != nil {
		return ApprovalRecord{}, false, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ApprovalRecord{}, false, nil
	}

	row := s.db.QueryRowContext(ctx, selectApproval+` WHERE id = ?`, id)
	rec, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return ApprovalRecord{}, false, nil
	}
	if err != nil {
		return ApprovalRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteApprovalStore) Resolve(ctx context.Context, id string, status ApprovalStatus, actor string, comment string) error {
	if s == nil {
		return fmt.Errorf("nil approval store")
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("missing approval id")
	}

	switch status {
	case ApprovalApproved, ApprovalDenied, ApprovalExpired:
	default:
		return fmt.Errorf("invalid approval status: %q", status)
	}

	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
UPDATE navigator_approvals
SET status = ?, actor = ?, comment = ?, resolved_at_unix = ?
WHERE id = ? AND status = ?
`, string(status), strings.TrimSpace(actor), strings.TrimSpace(comment), now, id, string(ApprovalPending))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("approval %s is not pending", id)
	}
	return nil
}

func (s *SQLiteApprovalStore) ListPending(ctx context.Context) ([]ApprovalRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("nil approval store")
	}
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Unix()
	rows, err := s.db.QueryContext(ctx, selectApproval+`
WHERE status = ? AND expires_at_unix > ?
ORDER BY created_at_unix ASC
`, string(ApprovalPending), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ApprovalRecord
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectApproval = `
SELECT
  id, request_id, created_at_unix, expires_at_unix, resolved_at_unix,
  status, actor, comment,
  kind, paths_json, summary, user_text
FROM navigator_approvals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (ApprovalRecord, error) {
	var (
		rec            ApprovalRecord
		createdAtUnix  int64
		expiresAtUnix  int64
		resolvedAtUnix sql.NullInt64
		status         string
		kind           string
		pathsJSON      string
	)
	err := row.Scan(
		&rec.ID, &rec.RequestID, &createdAtUnix, &expiresAtUnix, &resolvedAtUnix,
		&status, &rec.Actor, &rec.Comment,
		&kind, &pathsJSON, &rec.Summary, &rec.UserText,
	)
	if err != nil {
		return ApprovalRecord{}, err
	}
	rec.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	rec.ExpiresAt = time.Unix(expiresAtUnix, 0).UTC()
	if resolvedAtUnix.Valid {
		t := time.Unix(resolvedAtUnix.Int64, 0).UTC()
		rec.ResolvedAt = &t
	}
	rec.Status = ApprovalStatus(status)
	rec.Kind = intent.OpKind(kind)
	_ = json.Unmarshal([]byte(pathsJSON), &rec.Paths)
	return rec, nil
}

func (s *SQLiteApprovalStore) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	s.db = db
	return s.migrate()
}

func (s *SQLiteApprovalStore) ensureOpen() error {
	if s.db != nil {
		return nil
	}
	return s.open()
}

func (s *SQLiteApprovalStore) migrate() error {
	if s.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS navigator_approvals (
  id TEXT PRIMARY KEY,
  request_id TEXT,
  created_at_unix INTEGER NOT NULL,
  expires_at_unix INTEGER NOT NULL,
  resolved_at_unix INTEGER,
  status TEXT NOT NULL,
  actor TEXT,
  comment TEXT,
  kind TEXT,
  paths_json TEXT,
  summary TEXT,
  user_text TEXT
);
CREATE INDEX IF NOT EXISTS idx_navigator_approvals_status ON navigator_approvals(status);
`)
	return err
}

func randHex(nbytes int) string {
	if nbytes <= 0 {
		nbytes = 12
	}
	b := make([]byte, nbytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func nullTimeUnix(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}
