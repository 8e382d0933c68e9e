// Package sqlite persists the little state the server needs between
// notifications: onboarding reply claims and the webhook delivery log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const DriverName = "sqlite3"

type Storage struct {
	db *sqlx.DB
}

// Open opens the database file. Writes from concurrent notifications wait
// on the file lock instead of failing.
func Open(filename string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, "file:"+filename+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewStorage(db *sql.DB) *Storage {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	err := s.RunMigrations()
	if err != nil {
		panic(fmt.Sprintf("sqlite: running migrations: %v", err))
	}
	return s
}

func (s Storage) Close() error {
	return s.db.Close()
}

// ClaimReply marks the onboarding issue as answered. It returns false if
// another notification claimed it first.
func (s Storage) ClaimReply(ctx context.Context, repo string, issueNumber int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO onboarding_claims (repo, issue_number, claimed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(repo, issue_number) DO NOTHING;
	`, repo, issueNumber, time.Now().UTC().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseReply drops a claim so the issue can be answered again.
func (s Storage) ReleaseReply(ctx context.Context, repo string, issueNumber int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM onboarding_claims WHERE repo = ? AND issue_number = ?
	`, repo, issueNumber)
	return err
}

func (s Storage) Claim(ctx context.Context, repo string, issueNumber int) (*Claim, error) {
	var c Claim
	err := s.db.GetContext(ctx, &c, `
		SELECT repo, issue_number, claimed_at
		FROM onboarding_claims
		WHERE repo = ? AND issue_number = ?
	`, repo, issueNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordDelivery stores a webhook delivery id. When the id was seen
// before it returns the earlier delivery.
func (s Storage) RecordDelivery(ctx context.Context, id, event string, receivedAt time.Time) (*Delivery, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prev Delivery
	err = tx.GetContext(ctx, &prev, `
		SELECT id, event, received_at FROM deliveries WHERE id = ?
	`, id)
	switch {
	case err == nil:
		return &prev, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deliveries (id, event, received_at) VALUES (?, ?, ?)
	`, id, event, receivedAt.UTC().Unix())
	if err != nil {
		return nil, err
	}
	return nil, tx.Commit()
}

// PruneDeliveries forgets deliveries received before the given time.
func (s Storage) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM deliveries WHERE received_at < ?
	`, before.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
