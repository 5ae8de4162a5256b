// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package handler

import (
	"context"
	"errors"
	"testing"
)

type countingLoader struct {
	calls int
	err   error
}

func (l *countingLoader) TaskTitle(_ context.Context, id int64) (string, error) {
	l.calls++
	return "task-title", l.err
}

func (l *countingLoader) ListTitle(_ context.Context, id int64) (string, error) {
	l.calls++
	return "list-title", l.err
}

func (l *countingLoader) BookTitle(_ context.Context, id int64) (string, error) {
	l.calls++
	return "book-title", l.err
}

func TestCachingLoader_CachesTitles(t *testing.T) {
	inner := &countingLoader{}
	l := NewCachingLoader(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := l.ListTitle(ctx, 7)
		if err != nil || got != "list-title" {
			t.Fatalf("ListTitle = %q, %v", got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner loader called %d times, want 1", inner.calls)
	}
}

func TestCachingLoader_KindsDoNotCollide(t *testing.T) {
	inner := &countingLoader{}
	l := NewCachingLoader(inner)
	ctx := context.Background()

	taskTitle, _ := l.TaskTitle(ctx, 7)
	listTitle, _ := l.ListTitle(ctx, 7)
	if taskTitle == listTitle {
		t.Errorf("task and list with the same id share a cache entry: %q", taskTitle)
	}
	if inner.calls != 2 {
		t.Errorf("inner loader called %d times, want 2", inner.calls)
	}
}

func TestCachingLoader_ErrorsNotCached(t *testing.T) {
	inner := &countingLoader{err: errors.New("connection reset")}
	l := NewCachingLoader(inner)
	ctx := context.Background()

	if _, err := l.TaskTitle(ctx, 7); err == nil {
		t.Fatal("expected error")
	}
	inner.err = nil
	if got, err := l.TaskTitle(ctx, 7); err != nil || got != "task-title" {
		t.Errorf("TaskTitle after recovery = %q, %v", got, err)
	}
	if inner.calls != 2 {
		t.Errorf("inner loader called %d times, want 2", inner.calls)
	}
}
