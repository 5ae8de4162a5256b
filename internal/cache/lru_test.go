// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRU_GetAdd(t *testing.T) {
	c := NewLRU(4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned a value")
	}

	c.Add("task:5", "Roadmap review")
	if got, ok := c.Get("task:5"); !ok || got != "Roadmap review" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	c.Add("task:5", "Roadmap review v2")
	if got, _ := c.Get("task:5"); got != "Roadmap review v2" {
		t.Errorf("update not applied: %q", got)
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2, time.Minute)
	c.Add("a", "1")
	c.Add("b", "2")

	// Touch a so b becomes the eviction candidate.
	c.Get("a")
	c.Add("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU(4, 10*time.Millisecond)
	c.Add("a", "1")

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU(4, time.Minute)
	c.Add("a", "1")
	if !c.Remove("a") {
		t.Error("Remove returned false for existing key")
	}
	if c.Remove("a") {
		t.Error("Remove returned true for deleted key")
	}
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU(4, time.Minute)
	c.Add("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses", hits, misses)
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU(64, time.Minute)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%16)
				c.Add(key, "v")
				c.Get(key)
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
}
