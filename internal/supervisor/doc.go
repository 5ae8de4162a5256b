// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package supervisor provides suture-based process supervision.
//
// Each Relayhub process builds one Tree with two layers: the pipeline
// layer holds the queue router and consumers, the API layer holds HTTP
// servers. A crashing service is restarted with exponential backoff
// without affecting the other layer.
package supervisor
