// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/metrics"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// Postgres is the pipeline's persistence layer over database/sql + lib/pq.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection, and creates the
// pipeline-owned tables if they do not exist.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().Str("component", "store").Msg("Postgres store ready")
	return p, nil
}

// ensureSchema creates the pipeline-owned tables. Tables owned by the
// surrounding application (users, inboxes, tasks, ...) are never created
// or altered here.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id BIGSERIAL PRIMARY KEY,
			data JSONB NOT NULL,
			creator_id BIGINT NOT NULL,
			related_user_id BIGINT,
			type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS task_activities (
			activity_id BIGINT NOT NULL REFERENCES activities(id),
			task_id BIGINT NOT NULL,
			team_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS book_activities (
			activity_id BIGINT NOT NULL REFERENCES activities(id),
			book_id BIGINT NOT NULL,
			team_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inbox_activities (
			activity_id BIGINT NOT NULL REFERENCES activities(id),
			inbox_id BIGINT NOT NULL,
			team_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			task_id BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS task_activities_task_id_idx ON task_activities (task_id)`,
		`CREATE INDEX IF NOT EXISTS book_activities_book_id_idx ON book_activities (book_id)`,
		`CREATE INDEX IF NOT EXISTS inbox_activities_inbox_id_idx ON inbox_activities (inbox_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// InTx runs fn inside one transaction. Any error from fn rolls the
// whole transaction back; nothing written inside fn is visible until
// commit.
func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		metrics.RecordDBQuery("fanout_tx", time.Since(start), err)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		metrics.RecordDBQuery("fanout_tx", time.Since(start), err)
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	metrics.RecordDBQuery("fanout_tx", time.Since(start), nil)
	return nil
}

// TeamMemberIDs returns the user ids with access to the team, used for
// public fan-out and the real-time broadcast.
func (p *Postgres) TeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	return p.queryIDs(ctx, "team_member_ids",
		`SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id`, teamID)
}

// TaskSubscriberIDs returns the user ids explicitly subscribed to a task,
// used for private fan-out.
func (p *Postgres) TaskSubscriberIDs(ctx context.Context, taskID int64) ([]int64, error) {
	return p.queryIDs(ctx, "task_subscriber_ids",
		`SELECT user_id FROM task_subscriptions WHERE task_id = $1 ORDER BY user_id`, taskID)
}

func (p *Postgres) queryIDs(ctx context.Context, op, query string, arg any) ([]int64, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, query, arg)
	metrics.RecordDBQuery(op, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InboxesByUserIDs returns the inboxes for the given users. Users
// without an inbox are silently absent from the result.
func (p *Postgres) InboxesByUserIDs(ctx context.Context, userIDs []int64) ([]Inbox, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, email_enabled, push_enabled, muted_until
		 FROM inboxes WHERE user_id = ANY($1) ORDER BY user_id`,
		pq.Array(userIDs))
	metrics.RecordDBQuery("inboxes_by_user_ids", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("inboxes by user ids: %w", err)
	}
	defer rows.Close()

	var inboxes []Inbox
	for rows.Next() {
		var ib Inbox
		var muted sql.NullTime
		if err := rows.Scan(&ib.ID, &ib.UserID, &ib.EmailEnabled, &ib.PushEnabled, &muted); err != nil {
			return nil, fmt.Errorf("inbox scan: %w", err)
		}
		if muted.Valid {
			ib.MutedUntil = muted.Time
		}
		inboxes = append(inboxes, ib)
	}
	return inboxes, rows.Err()
}

// ActivityDetails reloads committed ledger rows with denormalized actor
// display data, in insertion order.
func (p *Postgres) ActivityDetails(ctx context.Context, ids []int64) ([]ActivityDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT a.id, a.data, a.creator_id, COALESCE(u.name, ''), COALESCE(u.avatar_url, ''),
		        COALESCE(a.related_user_id, 0), a.type, a.created_at
		 FROM activities a
		 LEFT JOIN users u ON u.id = a.creator_id
		 WHERE a.id = ANY($1)
		 ORDER BY a.id`,
		pq.Array(ids))
	metrics.RecordDBQuery("activity_details", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("activity details: %w", err)
	}
	defer rows.Close()

	var details []ActivityDetail
	for rows.Next() {
		var d ActivityDetail
		if err := rows.Scan(&d.ID, &d.Data, &d.CreatorID, &d.CreatorName, &d.CreatorAvatar,
			&d.RelatedUserID, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity detail scan: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ActivityDetail loads one ledger row by id. Used by the email and push
// consumers, which receive bare activity ids.
func (p *Postgres) ActivityDetail(ctx context.Context, id int64) (ActivityDetail, error) {
	details, err := p.ActivityDetails(ctx, []int64{id})
	if err != nil {
		return ActivityDetail{}, err
	}
	if len(details) == 0 {
		return ActivityDetail{}, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	return details[0], nil
}

// ActivityAudienceUserIDs returns the distinct users holding an inbox
// link for the activity, excluding none. The notification consumers
// re-derive their recipients from the committed links rather than
// re-running audience resolution.
func (p *Postgres) ActivityAudienceUserIDs(ctx context.Context, activityID int64) ([]int64, error) {
	return p.queryIDs(ctx, "activity_audience",
		`SELECT DISTINCT i.user_id
		 FROM inbox_activities ia
		 JOIN inboxes i ON i.id = ia.inbox_id
		 WHERE ia.activity_id = $1
		 ORDER BY i.user_id`, activityID)
}

// Recipients resolves email targets for the given users.
func (p *Postgres) Recipients(ctx context.Context, userIDs []int64) ([]Recipient, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, COALESCE(name, ''), email FROM users WHERE id = ANY($1) ORDER BY id`,
		pq.Array(userIDs))
	metrics.RecordDBQuery("recipients", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email); err != nil {
			return nil, fmt.Errorf("recipient scan: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// PushTokens returns the registered device tokens for the given users.
func (p *Postgres) PushTokens(ctx context.Context, userIDs []int64) ([]PushToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT user_id, token FROM push_tokens WHERE user_id = ANY($1) ORDER BY user_id`,
		pq.Array(userIDs))
	metrics.RecordDBQuery("push_tokens", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []PushToken
	for rows.Next() {
		var t PushToken
		if err := rows.Scan(&t.UserID, &t.Token); err != nil {
			return nil, fmt.Errorf("push token scan: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// TaskTitle returns the display title of a task.
func (p *Postgres) TaskTitle(ctx context.Context, taskID int64) (string, error) {
	return p.queryTitle(ctx, "task_title",
		`SELECT title FROM tasks WHERE id = $1`, taskID)
}

// ListTitle returns the display title of a list, used for building
// human-readable row-reassignment records.
func (p *Postgres) ListTitle(ctx context.Context, listID int64) (string, error) {
	return p.queryTitle(ctx, "list_title",
		`SELECT title FROM lists WHERE id = $1`, listID)
}

// BookTitle returns the display title of a workspace.
func (p *Postgres) BookTitle(ctx context.Context, bookID int64) (string, error) {
	return p.queryTitle(ctx, "book_title",
		`SELECT title FROM books WHERE id = $1`, bookID)
}

func (p *Postgres) queryTitle(ctx context.Context, op, query string, id int64) (string, error) {
	start := time.Now()
	var title string
	err := p.db.QueryRowContext(ctx, query, id).Scan(&title)
	metrics.RecordDBQuery(op, time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %d: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return title, nil
}
