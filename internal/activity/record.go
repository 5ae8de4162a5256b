// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

// Action describes what happened to a field or to a whole entity.
//
// The three generic actions come out of the diff engine. Entity handlers
// additionally emit lifecycle actions ("task-create", "book-delete") and
// composite actions ("tag", "dates", "list") for field groups that only
// make sense together.
type Action string

const (
	// ActionCreate means a field went from absent to present.
	ActionCreate Action = "create"
	// ActionUpdate means a present field changed value.
	ActionUpdate Action = "update"
	// ActionDelete means a field went from present to absent.
	ActionDelete Action = "delete"
)

// CreateAction returns the lifecycle action for a newly created entity.
func CreateAction(kind string) Action {
	return Action(kind + "-create")
}

// DeleteAction returns the lifecycle action for a deleted entity.
func DeleteAction(kind string) Action {
	return Action(kind + "-delete")
}

// ChangeRecord is one semantic change derived from a change event.
//
// Column is empty for whole-entity lifecycle records. Value carries the
// new value (old value for deletes) when the policy asks for it.
// AdditionValue carries the previous value on updates for fields that
// need "changed from X to Y" messaging. CustomValue is a constant
// descriptive label attached by the policy, used for notification copy
// when the entity has no stable title field.
type ChangeRecord struct {
	Column        string `json:"column,omitempty"`
	Action        Action `json:"action"`
	Value         any    `json:"value,omitempty"`
	AdditionValue any    `json:"additionValue,omitempty"`
	CustomValue   string `json:"customValue,omitempty"`
}

// IsLifecycle reports whether the record describes entity creation or
// deletion rather than a field-level change.
func (r ChangeRecord) IsLifecycle() bool {
	return r.Column == ""
}
