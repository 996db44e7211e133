// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the newline-delimited JSON wire types for
// the editorlink bridge socket. Both the bridge server and the call
// client import this package so the envelope shapes are defined once
// rather than mirrored.
//
// The wire format is one UTF-8 JSON value per line. A request is
// {"method": "...", "params": {...}}; a response carries exactly one
// of "result" or "error". [Response.MarshalJSON] enforces the
// exclusivity: a success response always serializes a "result" key
// (null when the handler produced no payload) and never an "error"
// key, and vice versa.
package protocol
