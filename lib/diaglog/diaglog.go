// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package diaglog writes the bridge's append-only diagnostic log file.
//
// This is the post-mortem record of every request's lifecycle phases,
// separate from the process's stderr slog output: it lives next to the
// project so an operator can reconstruct what the bridge did after the
// client and the editor are both gone.
//
// The logger is strictly best-effort. Every internal failure — disk
// full, permission denied, serialization failure — is swallowed,
// because logging must never break the request path it is observing.
// The active file rotates to a single .old backup once it exceeds the
// size ceiling, overwriting any previous backup.
package diaglog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxFileBytes is the rotation ceiling for the active log file.
const DefaultMaxFileBytes = 5 * 1024 * 1024

// maxPayloadChars bounds the serialized data payload of a single line.
// Oversized payloads (a dumped scene graph, a full stack trace) are
// truncated rather than rejected.
const maxPayloadChars = 2000

// clearMarker is written as the first line after Clear truncates the
// file, so a truncation is distinguishable from a crash-born empty file.
const clearMarker = "log cleared"

// Logger appends structured lines to a log file. All methods are safe
// for concurrent use and never return or panic on I/O failure.
type Logger struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	enabled  bool
	file     *os.File
}

// Options configures a Logger.
type Options struct {
	// MaxFileBytes is the rotation ceiling; zero uses
	// DefaultMaxFileBytes.
	MaxFileBytes int64

	// Disabled turns every method into a no-op. The bridge reads this
	// from configuration once at startup.
	Disabled bool
}

// New creates a logger writing to path. The parent directory is
// created if missing. Creation failures are swallowed like every other
// failure: the returned logger simply stays silent.
func New(path string, options Options) *Logger {
	maxBytes := options.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	logger := &Logger{
		path:     path,
		maxBytes: maxBytes,
		enabled:  !options.Disabled,
	}
	if logger.enabled {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	return logger
}

// Path returns the active log file path.
func (l *Logger) Path() string {
	return l.path
}

// line is the serialized form of one log record.
type line struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
}

// Log appends one record. data is optional; payloads whose JSON form
// exceeds the size bound are replaced by a truncated string rendering.
func (l *Logger) Log(level slog.Level, component, message string, data any) {
	if !l.enabled {
		return
	}

	record := line{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Component: component,
		Message:   message,
		Data:      truncatePayload(data),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		// A payload that defeats both Marshal and the truncation
		// fallback is dropped; the line is still written without it.
		record.Data = nil
		encoded, err = json.Marshal(record)
		if err != nil {
			return
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotateIfNeededLocked()
	l.writeLocked(append(encoded, '\n'))
}

// Clear truncates the active file and writes a marker line.
func (l *Logger) Clear() {
	if !l.enabled {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	l.file = file

	marker, err := json.Marshal(line{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:     slog.LevelInfo.String(),
		Component: "diaglog",
		Message:   clearMarker,
	})
	if err != nil {
		return
	}
	l.writeLocked(append(marker, '\n'))
}

// Close releases the file handle. Further Log calls reopen it.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *Logger) closeLocked() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// writeLocked appends bytes to the active file, opening it on demand.
func (l *Logger) writeLocked(data []byte) {
	if l.file == nil {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		l.file = file
	}
	_, _ = l.file.Write(data)
}

// rotateIfNeededLocked moves the active file to <path>.old once it
// exceeds the ceiling, replacing any previous backup.
func (l *Logger) rotateIfNeededLocked() {
	info, err := os.Stat(l.path)
	if err != nil || info.Size() < l.maxBytes {
		return
	}
	l.closeLocked()
	_ = os.Rename(l.path, l.path+".old")
}

// truncatePayload bounds the serialized size of a data payload. Small
// payloads pass through untouched; oversized ones are rendered to a
// string and cut at the character bound.
func truncatePayload(data any) any {
	if data == nil {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("(unserializable payload: %v)", err)
	}
	if len(encoded) <= maxPayloadChars {
		return data
	}
	return string(encoded[:maxPayloadChars]) + "...(truncated)"
}
