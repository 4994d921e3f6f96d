// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "test",
		Quiet:   true,
	})

	logger.Info("hello from the test", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	filename := filepath.Join(dir, "test_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log file must be JSON, got %q: %v", line, err)
	}
	if entry["msg"] != "hello from the test" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["service"] != "test" {
		t.Errorf("service attribute missing: %v", entry)
	}
	if entry["key"] != "value" {
		t.Errorf("attribute missing: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter",
		Quiet:   true,
	})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	_ = logger.Close()

	filename := filepath.Join(dir, "filter_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "dropped") {
		t.Error("messages below the level must be filtered")
	}
	if !strings.Contains(text, "kept") {
		t.Error("warn message must be written")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "child", Quiet: true})
	child := logger.With("request_id", "r-1")
	child.Info("scoped")
	_ = logger.Close()

	filename := filepath.Join(dir, "child_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"request_id":"r-1"`) {
		t.Errorf("child attribute missing: %s", data)
	}
}

func TestCloseWithoutFileIsNil(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("close without file: %v", err)
	}
}
