// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package config loads process configuration for the worker and the
// gateway from layered sources: built-in defaults, an optional YAML
// file, and environment variables, in ascending priority.
package config
