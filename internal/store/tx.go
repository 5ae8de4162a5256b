// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Tx is the write surface available inside a fan-out transaction.
// All inserts happen against the same underlying transaction; an error
// from any method aborts the whole transaction.
type Tx interface {
	// InsertActivities appends ledger rows and returns their generated
	// ids in input order.
	InsertActivities(ctx context.Context, activities []NewActivity) ([]int64, error)

	// InsertTaskLinks writes one task_activities row per activity id and
	// returns the number of rows inserted.
	InsertTaskLinks(ctx context.Context, activityIDs []int64, taskID, teamID int64) (int64, error)

	// InsertBookLinks writes one book_activities row per activity id and
	// returns the number of rows inserted.
	InsertBookLinks(ctx context.Context, activityIDs []int64, bookID, teamID int64) (int64, error)

	// InsertInboxLinks writes the given inbox_activities rows and returns
	// the number of rows inserted.
	InsertInboxLinks(ctx context.Context, links []InboxLink) (int64, error)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) InsertActivities(ctx context.Context, activities []NewActivity) ([]int64, error) {
	if len(activities) == 0 {
		return nil, nil
	}

	query, args := insertActivitiesQuery(activities)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert activities: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(activities))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("insert activities scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert activities: %w", err)
	}
	return ids, nil
}

func (t *pgTx) InsertTaskLinks(ctx context.Context, activityIDs []int64, taskID, teamID int64) (int64, error) {
	return t.insertContextLinks(ctx, "task_activities", "task_id", activityIDs, taskID, teamID)
}

func (t *pgTx) InsertBookLinks(ctx context.Context, activityIDs []int64, bookID, teamID int64) (int64, error) {
	return t.insertContextLinks(ctx, "book_activities", "book_id", activityIDs, bookID, teamID)
}

func (t *pgTx) insertContextLinks(ctx context.Context, table, scopeColumn string, activityIDs []int64, scopeID, teamID int64) (int64, error) {
	if len(activityIDs) == 0 {
		return 0, nil
	}

	query, args := insertContextLinksQuery(table, scopeColumn, activityIDs, scopeID, teamID)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert %s rows affected: %w", table, err)
	}
	return n, nil
}

func (t *pgTx) InsertInboxLinks(ctx context.Context, links []InboxLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}

	query, args := insertInboxLinksQuery(links)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert inbox_activities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert inbox_activities rows affected: %w", err)
	}
	return n, nil
}

// insertActivitiesQuery builds a multi-row insert returning the
// generated ids in input order.
func insertActivitiesQuery(activities []NewActivity) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO activities (data, creator_id, related_user_id, type, created_at) VALUES ")

	const cols = 5
	args := make([]any, 0, len(activities)*cols)
	for i, a := range activities {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*cols+1, cols)

		var related any
		if a.RelatedUserID != 0 {
			related = a.RelatedUserID
		}
		args = append(args, a.Data, a.CreatorID, related, a.Type, a.CreatedAt)
	}
	sb.WriteString(" RETURNING id")
	return sb.String(), args
}

func insertContextLinksQuery(table, scopeColumn string, activityIDs []int64, scopeID, teamID int64) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + table + " (activity_id, " + scopeColumn + ", team_id) VALUES ")

	const cols = 3
	args := make([]any, 0, len(activityIDs)*cols)
	for i, id := range activityIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*cols+1, cols)
		args = append(args, id, scopeID, teamID)
	}
	return sb.String(), args
}

func insertInboxLinksQuery(links []InboxLink) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO inbox_activities (activity_id, inbox_id, team_id, type, task_id) VALUES ")

	const cols = 5
	args := make([]any, 0, len(links)*cols)
	for i, l := range links {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*cols+1, cols)

		var taskID any
		if l.TaskID != 0 {
			taskID = l.TaskID
		}
		args = append(args, l.ActivityID, l.InboxID, l.TeamID, l.Type, taskID)
	}
	return sb.String(), args
}

// writePlaceholders appends "($n, $n+1, ...)" for one VALUES tuple.
func writePlaceholders(sb *strings.Builder, start, count int) {
	sb.WriteByte('(')
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(start + i))
	}
	sb.WriteByte(')')
}
