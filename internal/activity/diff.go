// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package activity

// Compare diffs two snapshots of one entity under the given policy and
// returns the field-level changes in the to-snapshot's declared field
// order.
//
// When either snapshot is nil there are no field-level changes: pure
// creation and deletion are lifecycle events, emitted by the caller as
// a single synthetic record instead.
//
// Rules, applied per field of the to-snapshot:
//   - fields in policy.Ignore are skipped
//   - list-valued fields are skipped; a changing list is the entity
//     handler's responsibility to interpret
//   - when both sides hold a nested object the diff recurses and the
//     nested changes are flattened into the result with dot-joined
//     column paths ("settings.color")
//   - absent -> present yields create, present -> absent yields delete,
//     present -> different yields update
//
// The output is deterministic for a fixed (from, to, policy) because
// iteration follows the to-snapshot's preserved field order.
func Compare(from, to *Snapshot, policy *Policy) []ChangeRecord {
	if from == nil || to == nil {
		return nil
	}
	var out []ChangeRecord
	compareInto(&out, "", from, to, policy)
	return out
}

func compareInto(out *[]ChangeRecord, prefix string, from, to *Snapshot, policy *Policy) {
	for _, field := range to.Fields() {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		if policy.Ignore.Has(path) {
			continue
		}

		toVal, _ := to.Get(field)
		if _, isList := toVal.([]any); isList {
			continue
		}

		fromVal, _ := from.Get(field)

		// Nested objects flatten into the parent result. This was an
		// open point in the original behavior (the recursive result was
		// observably discarded); flattening is the useful reading and
		// is pinned by TestCompare_NestedObjectFlattening.
		if toNested, ok := toVal.(*Snapshot); ok {
			if fromNested, ok := fromVal.(*Snapshot); ok {
				compareInto(out, path, fromNested, toNested, policy)
				continue
			}
		}

		var action Action
		switch {
		case !truthy(fromVal) && truthy(toVal):
			action = ActionCreate
		case truthy(fromVal) && !truthy(toVal):
			action = ActionDelete
		case truthy(fromVal) && truthy(toVal) && !valuesEqual(fromVal, toVal):
			action = ActionUpdate
		default:
			continue
		}

		rec := ChangeRecord{Column: path, Action: action, CustomValue: policy.TitleLabel}
		if policy.wantsValue(action, path) {
			if action == ActionDelete {
				rec.Value = fromVal
			} else {
				rec.Value = toVal
			}
		}
		if action == ActionUpdate && policy.AlsoCaptureOldValueOn.Has(path) {
			rec.AdditionValue = fromVal
		}
		*out = append(*out, rec)
	}
}
