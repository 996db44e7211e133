// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package diaglog

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLines(t *testing.T, path string) []line {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	defer file.Close()

	var lines []line
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var record line
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("log line is not valid JSON: %v: %s", err, scanner.Text())
		}
		lines = append(lines, record)
	}
	return lines
}

func TestLog_AppendsStructuredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{})
	defer logger.Close()

	logger.Log(slog.LevelInfo, "server", "request received", map[string]string{"method": "ping"})
	logger.Log(slog.LevelError, "router", "handler failed", nil)

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0].Component != "server" || lines[0].Level != "INFO" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Level != "ERROR" || lines[1].Message != "handler failed" {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}
}

func TestLog_TruncatesOversizedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{})
	defer logger.Close()

	logger.Log(slog.LevelDebug, "server", "huge payload", strings.Repeat("a", 10*maxPayloadChars))

	lines := readLines(t, path)
	payload, ok := lines[0].Data.(string)
	if !ok {
		t.Fatalf("truncated payload should be a string, got %T", lines[0].Data)
	}
	if !strings.HasSuffix(payload, "...(truncated)") {
		t.Fatal("oversized payload was not marked truncated")
	}
	if len(payload) > maxPayloadChars+len("...(truncated)") {
		t.Fatalf("payload length %d exceeds the bound", len(payload))
	}
}

func TestLog_SwallowsUnserializablePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{})
	defer logger.Close()

	// Channels cannot be marshaled; the line must still be written.
	logger.Log(slog.LevelWarn, "server", "bad payload", make(chan int))

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
	if lines[0].Message != "bad payload" {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}

func TestLog_RotatesToOldBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{MaxFileBytes: 256})
	defer logger.Close()

	for i := 0; i < 20; i++ {
		logger.Log(slog.LevelInfo, "server", "filler line to push the file over the rotation ceiling", nil)
	}

	if _, err := os.Stat(path + ".old"); err != nil {
		t.Fatalf("expected a .old backup: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("active file missing after rotation: %v", err)
	}
	if info.Size() >= 20*256 {
		t.Fatalf("active file did not shrink after rotation: %d bytes", info.Size())
	}
}

func TestLog_RotationOverwritesPreviousBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	backup := path + ".old"
	if err := os.WriteFile(backup, []byte("previous backup\n"), 0o644); err != nil {
		t.Fatalf("seeding backup: %v", err)
	}

	logger := New(path, Options{MaxFileBytes: 64})
	defer logger.Close()
	for i := 0; i < 10; i++ {
		logger.Log(slog.LevelInfo, "server", "another filler line", nil)
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if strings.Contains(string(data), "previous backup") {
		t.Fatal("rotation did not overwrite the previous backup")
	}
}

func TestClear_TruncatesWithMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{})
	defer logger.Close()

	logger.Log(slog.LevelInfo, "server", "before clear", nil)
	logger.Clear()
	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d after Clear, want the marker only", len(lines))
	}
	if lines[0].Message != clearMarker {
		t.Fatalf("unexpected marker line: %+v", lines[0])
	}

	// The file stays usable after Clear.
	logger.Log(slog.LevelInfo, "server", "after clear", nil)
	if lines := readLines(t, path); len(lines) != 2 {
		t.Fatalf("len(lines) = %d after post-Clear write, want 2", len(lines))
	}
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(path, Options{Disabled: true})
	logger.Log(slog.LevelInfo, "server", "should not appear", nil)
	logger.Clear()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("disabled logger created a file")
	}
}

func TestLog_UnwritableDirectoryIsSwallowed(t *testing.T) {
	logger := New("/proc/definitely/not/writable/bridge.log", Options{})
	// Must not panic or error.
	logger.Log(slog.LevelInfo, "server", "into the void", nil)
	logger.Clear()
	logger.Close()
}
