package core

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestInitializationFailedKeepsCause(t *testing.T) {
	err := InitializationFailed(ErrNoSuitableMemoryType, "uniform buffer")
	if !errors.Is(err, ErrInitializationFailed) {
		t.Fatalf("expected ErrInitializationFailed, got %v", err)
	}
	if !errors.Is(err, ErrNoSuitableMemoryType) {
		t.Fatalf("expected cause to be reachable, got %v", err)
	}
	if errors.Is(err, ErrFrameFailed) {
		t.Fatalf("init error must not look like a frame error")
	}
}

func TestFrameFailed(t *testing.T) {
	if FrameFailed(nil, "submit") != nil {
		t.Fatal("nil in, nil out")
	}
	err := FrameFailed(ErrSyncIndexOutOfRange, "acquire")
	if !errors.Is(err, ErrFrameFailed) || !errors.Is(err, ErrSyncIndexOutOfRange) {
		t.Fatalf("unexpected error chain: %v", err)
	}
}
