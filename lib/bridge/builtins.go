// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"

	"github.com/editorlink-project/editorlink/lib/activity"
)

// RegisterBuiltins installs the bridge's own methods in the registry.
// These exist for every embedding host:
//
//   - ping: echoes params back unchanged.
//   - bridge.status: the health surface, answered on the worker.
//   - bridge.activity: recent request outcomes, answered on the worker.
//   - bridge.methods: all registered method names.
//   - bridge.log.clear: truncates the diagnostic log file.
//
// status and activity are marked synchronous because a liveness probe
// that queues behind a frozen host loop is useless.
func (s *Server) RegisterBuiltins() {
	s.registry.Register("ping", func(_ context.Context, params json.RawMessage) (any, error) {
		if params == nil {
			return nil, nil
		}
		return params, nil
	})

	s.registry.Register("bridge.status", func(context.Context, json.RawMessage) (any, error) {
		return s.Status(), nil
	})

	s.registry.Register("bridge.activity", func(context.Context, json.RawMessage) (any, error) {
		entries, counters := s.recorder.Snapshot()
		return struct {
			Entries  []activity.Entry  `json:"entries"`
			Counters activity.Counters `json:"counters"`
		}{Entries: entries, Counters: counters}, nil
	})

	s.registry.Register("bridge.methods", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"methods": s.registry.Methods()}, nil
	})

	s.registry.Register("bridge.log.clear", func(context.Context, json.RawMessage) (any, error) {
		s.diag.Clear()
		return nil, nil
	})

	s.syncMethods["bridge.status"] = true
	s.syncMethods["bridge.activity"] = true
}
