// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

import (
	"testing"

	"github.com/goccy/go-json"
)

func taskPolicy() *Policy {
	return &Policy{
		Ignore: NewFieldSet("id", "updatedAt"),
		ValueOnAction: map[Action]FieldSet{
			ActionCreate: NewFieldSet("title", "completedAt", "dueDate"),
			ActionUpdate: NewFieldSet("title", "dueDate"),
			ActionDelete: NewFieldSet("title"),
		},
		AlsoCaptureOldValueOn: NewFieldSet("title"),
	}
}

func TestCompare_TitleUpdate(t *testing.T) {
	from := NewSnapshot("id", 5, "title", "Old")
	to := NewSnapshot("id", 5, "title", "New")

	records := Compare(from, to, taskPolicy())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Column != "title" {
		t.Errorf("expected column=title, got %q", rec.Column)
	}
	if rec.Action != ActionUpdate {
		t.Errorf("expected action=update, got %q", rec.Action)
	}
	if rec.Value != "New" {
		t.Errorf("expected value=New, got %v", rec.Value)
	}
	if rec.AdditionValue != "Old" {
		t.Errorf("expected additionValue=Old, got %v", rec.AdditionValue)
	}
}

func TestCompare_CompletionToggle(t *testing.T) {
	from := NewSnapshot("id", 5, "completedAt", nil)
	to := NewSnapshot("id", 5, "completedAt", "2024-01-01T00:00:00Z")

	records := Compare(from, to, taskPolicy())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != ActionCreate {
		t.Errorf("expected action=create, got %q", records[0].Action)
	}
	if records[0].Value != "2024-01-01T00:00:00Z" {
		t.Errorf("expected value carried, got %v", records[0].Value)
	}
}

func TestCompare_FieldCleared(t *testing.T) {
	from := NewSnapshot("id", 5, "dueDate", "2024-06-01")
	to := NewSnapshot("id", 5, "dueDate", nil)

	records := Compare(from, to, taskPolicy())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != ActionDelete {
		t.Errorf("expected action=delete, got %q", records[0].Action)
	}
	// Delete carries the previous value when the policy lists the field.
	if records[0].Value != nil {
		t.Errorf("dueDate is not in the delete value set, got %v", records[0].Value)
	}
}

func TestCompare_NilSnapshotYieldsNothing(t *testing.T) {
	to := NewSnapshot("id", 5, "title", "New")
	if got := Compare(nil, to, taskPolicy()); got != nil {
		t.Errorf("expected nil for nil from-snapshot, got %v", got)
	}
	if got := Compare(to, nil, taskPolicy()); got != nil {
		t.Errorf("expected nil for nil to-snapshot, got %v", got)
	}
}

func TestCompare_NoChangeIsEmpty(t *testing.T) {
	from := NewSnapshot("id", 5, "title", "Same", "dueDate", nil)
	to := NewSnapshot("id", 5, "title", "Same", "dueDate", nil)

	if got := Compare(from, to, taskPolicy()); len(got) != 0 {
		t.Errorf("expected no records for identical snapshots, got %v", got)
	}
}

func TestCompare_IgnoredAndListFieldsSkipped(t *testing.T) {
	from := NewSnapshot("id", 5, "updatedAt", "a", "labels", []any{"x"}, "title", "T")
	to := NewSnapshot("id", 6, "updatedAt", "b", "labels", []any{"x", "y"}, "title", "T")

	if got := Compare(from, to, taskPolicy()); len(got) != 0 {
		t.Errorf("expected ignored id/updatedAt and list labels to be skipped, got %v", got)
	}
}

// Pins the flattening decision for nested-object diffs: nested changes
// surface in the flat result with dot-joined column paths.
func TestCompare_NestedObjectFlattening(t *testing.T) {
	policy := &Policy{
		Ignore: NewFieldSet("id"),
		ValueOnAction: map[Action]FieldSet{
			ActionUpdate: NewFieldSet("settings.color"),
		},
	}
	from := NewSnapshot("id", 1, "settings", NewSnapshot("color", "red", "pinned", true))
	to := NewSnapshot("id", 1, "settings", NewSnapshot("color", "blue", "pinned", true))

	records := Compare(from, to, policy)
	if len(records) != 1 {
		t.Fatalf("expected 1 flattened record, got %d", len(records))
	}
	if records[0].Column != "settings.color" {
		t.Errorf("expected dotted column path, got %q", records[0].Column)
	}
	if records[0].Value != "blue" {
		t.Errorf("expected value=blue, got %v", records[0].Value)
	}
}

func TestCompare_Deterministic(t *testing.T) {
	raw := []byte(`{"id":5,"title":"B","dueDate":"2024-06-01","completedAt":"x"}`)
	base := []byte(`{"id":5,"title":"A","dueDate":null,"completedAt":null}`)

	var first []ChangeRecord
	for i := 0; i < 10; i++ {
		from, err := ParseSnapshot(base)
		if err != nil {
			t.Fatalf("parse from: %v", err)
		}
		to, err := ParseSnapshot(raw)
		if err != nil {
			t.Fatalf("parse to: %v", err)
		}
		got := Compare(from, to, taskPolicy())
		if i == 0 {
			first = got
			if len(first) != 3 {
				t.Fatalf("expected 3 records, got %d", len(first))
			}
			continue
		}
		if len(got) != len(first) {
			t.Fatalf("run %d: got %d records, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j].Column != first[j].Column || got[j].Action != first[j].Action {
				t.Fatalf("run %d: record %d differs: %+v vs %+v", i, j, got[j], first[j])
			}
		}
	}
	// Ordering follows the to-document's declared field order.
	wantOrder := []string{"title", "dueDate", "completedAt"}
	for i, col := range wantOrder {
		if first[i].Column != col {
			t.Errorf("record %d: expected column %q, got %q", i, col, first[i].Column)
		}
	}
}

func TestCompare_CustomValueLabel(t *testing.T) {
	policy := &Policy{
		Ignore:     NewFieldSet("id"),
		TitleLabel: "Design review notes",
	}
	from := NewSnapshot("id", 9, "body", "a")
	to := NewSnapshot("id", 9, "body", "b")

	records := Compare(from, to, policy)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CustomValue != "Design review notes" {
		t.Errorf("expected customValue label, got %q", records[0].CustomValue)
	}
}

func TestCompare_NumericZeroIsFalsy(t *testing.T) {
	from := NewSnapshot("id", 5, "position", 0)
	to := NewSnapshot("id", 5, "position", 3)

	records := Compare(from, to, taskPolicy())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != ActionCreate {
		t.Errorf("0 -> 3 should read as create, got %q", records[0].Action)
	}
}

func TestPolicy_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := taskPolicy().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		p := &Policy{ValueOnAction: map[Action]FieldSet{"explode": NewFieldSet("x")}}
		if err := p.Validate(); err == nil {
			t.Error("expected error for unknown action")
		}
	})

	t.Run("ignored capture-old field", func(t *testing.T) {
		p := &Policy{
			Ignore:                NewFieldSet("title"),
			AlsoCaptureOldValueOn: NewFieldSet("title"),
		}
		if err := p.Validate(); err == nil {
			t.Error("expected error for ignored capture-old field")
		}
	})
}

func TestChangeRecord_JSONShape(t *testing.T) {
	rec := ChangeRecord{Column: "title", Action: ActionUpdate, Value: "New", AdditionValue: "Old"}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["column"] != "title" || decoded["action"] != "update" {
		t.Errorf("unexpected JSON shape: %s", data)
	}
	if _, present := decoded["customValue"]; present {
		t.Error("empty customValue should be omitted")
	}
}
