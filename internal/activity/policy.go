// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

import "fmt"

// FieldSet is a set of field names, keyed by the dot-joined field path.
type FieldSet map[string]struct{}

// NewFieldSet builds a set from field names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the given field path.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Policy configures the diff engine for one entity kind.
//
// Policies are built once at startup and validated there; the diff
// engine never mutates them, so one policy instance is safe for
// concurrent use by every consumer iteration.
type Policy struct {
	// Ignore lists fields the diff never looks at. Handlers put fields
	// here that they interpret themselves as composite changes.
	Ignore FieldSet

	// ValueOnAction lists, per action, the fields whose value is copied
	// onto the change record. For delete actions the previous value is
	// copied, otherwise the new one.
	ValueOnAction map[Action]FieldSet

	// AlsoCaptureOldValueOn lists fields whose previous value is
	// attached on update, for "changed from X to Y" messaging.
	AlsoCaptureOldValueOn FieldSet

	// TitleLabel is a constant descriptive label stamped onto every
	// record produced under this policy. Used when the entity lacks a
	// stable title field of its own.
	TitleLabel string
}

// Validate checks the policy for internally inconsistent configuration.
// Called once at startup when the handler registry is assembled.
func (p *Policy) Validate() error {
	for action := range p.ValueOnAction {
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
		default:
			return fmt.Errorf("policy: value-on-action for unknown action %q", action)
		}
	}
	for field := range p.AlsoCaptureOldValueOn {
		if p.Ignore.Has(field) {
			return fmt.Errorf("policy: field %q is both ignored and capture-old", field)
		}
	}
	return nil
}

// wantsValue reports whether the record for (action, field) carries a value.
func (p *Policy) wantsValue(action Action, field string) bool {
	set, ok := p.ValueOnAction[action]
	return ok && set.Has(field)
}
