package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	want := fmt.Sprintf("pid=%d\n", os.Getpid())
	if string(data) != want {
		t.Errorf("lock file content = %q, want %q", data, want)
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
}

func TestAcquireHeld(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer first.Release()

	// A second open creates a separate file description, so the flock
	// conflicts even within one process.
	second, err := Acquire(dir)
	if err == nil {
		second.Release()
		t.Fatal("second Acquire() succeeded, want held error")
	}

	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("second Acquire() error = %T, want *HeldError", err)
	}
	if held.Path != filepath.Join(dir, LockFileName) {
		t.Errorf("HeldError.Path = %q, want %q", held.Path, filepath.Join(dir, LockFileName))
	}
	wantHolder := fmt.Sprintf("PID %d (running)", os.Getpid())
	if held.Holder != wantHolder {
		t.Errorf("HeldError.Holder = %q, want %q", held.Holder, wantHolder)
	}
	if !strings.Contains(held.Error(), "another RetailPipe instance") {
		t.Errorf("HeldError.Error() = %q, want mention of the other instance", held.Error())
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock file still present after Release, stat err = %v", err)
	}

	// Release is idempotent.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() after Release error = %v", err)
	}
	again.Release()
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"normal", "pid=1234\n", 1234},
		{"no newline", "pid=7", 7},
		{"trailing junk", "pid=42 host=box\n", 42},
		{"missing prefix", "locked\n", 0},
		{"empty", "", 0},
		{"non numeric", "pid=abc\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePID(tt.content); got != tt.want {
				t.Errorf("parsePID(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}
