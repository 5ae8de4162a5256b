// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/relayhub/relayhub/internal/cache"
)

// CachingLoader wraps a Loader with a short-lived LRU so bursts of
// events against the same task or list do not hammer Postgres with
// title lookups. Titles can go stale for the TTL; activity rendering
// tolerates that.
type CachingLoader struct {
	next   Loader
	titles *cache.LRU
}

// NewCachingLoader wraps next with a title cache.
func NewCachingLoader(next Loader) *CachingLoader {
	return &CachingLoader{
		next:   next,
		titles: cache.NewLRU(4096, 2*time.Minute),
	}
}

// TaskTitle implements Loader.
func (l *CachingLoader) TaskTitle(ctx context.Context, id int64) (string, error) {
	return l.lookup(ctx, "task", id, l.next.TaskTitle)
}

// ListTitle implements Loader.
func (l *CachingLoader) ListTitle(ctx context.Context, id int64) (string, error) {
	return l.lookup(ctx, "list", id, l.next.ListTitle)
}

// BookTitle implements Loader.
func (l *CachingLoader) BookTitle(ctx context.Context, id int64) (string, error) {
	return l.lookup(ctx, "book", id, l.next.BookTitle)
}

func (l *CachingLoader) lookup(ctx context.Context, kind string, id int64, load func(context.Context, int64) (string, error)) (string, error) {
	key := fmt.Sprintf("%s:%d", kind, id)
	if title, ok := l.titles.Get(key); ok {
		return title, nil
	}
	title, err := load(ctx, id)
	if err != nil {
		return "", err
	}
	l.titles.Add(key, title)
	return title, nil
}
