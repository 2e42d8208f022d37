package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFileBufferCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.js")
	fb, err := NewFileBuffer(path)
	if err != nil {
		t.Fatal(err)
	}
	if fb.Text() != "" {
		t.Errorf("Text = %q", fb.Text())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestFileBufferExternalWriteIsLocalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.js")
	if err := os.WriteFile(path, []byte("let a"), 0o644); err != nil {
		t.Fatal(err)
	}
	fb, err := NewFileBuffer(path)
	if err != nil {
		t.Fatal(err)
	}
	spy := &listenerSpy{}
	fb.SetListener(spy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer fb.Close()

	if err := os.WriteFile(path, []byte("let a = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "document change", func() bool { return spy.lastText() == "let a = 1" })
	if fb.Text() != "let a = 1" {
		t.Errorf("Text = %q", fb.Text())
	}
}

func TestFileBufferReplaceDoesNotEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.js")
	fb, err := NewFileBuffer(path)
	if err != nil {
		t.Fatal(err)
	}
	spy := &listenerSpy{}
	fb.SetListener(spy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer fb.Close()

	fb.ReplaceRange(0, 0, "remote text")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "remote text" {
		t.Errorf("file = %q", data)
	}

	time.Sleep(200 * time.Millisecond)
	if spy.changes() != 0 {
		t.Errorf("remote write reported as %d local edits", spy.changes())
	}
}
