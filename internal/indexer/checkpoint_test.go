package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpointStoreRoundTripByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	cp := NewCheckpointStore(path, true)
	ctx := context.Background()

	if _, ok, err := cp.Load(ctx, "a"); err != nil || ok {
		t.Fatalf("expected empty checkpoint, got ok=%v err=%v", ok, err)
	}
	if err := cp.Save(ctx, "a", 100); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := cp.Save(ctx, "b", 200); err != nil {
		t.Fatalf("save b: %v", err)
	}

	got, ok, err := cp.Load(ctx, "a")
	if err != nil || !ok || got != 100 {
		t.Fatalf("load a: got %d ok=%v err=%v", got, ok, err)
	}
	got, ok, err = cp.Load(ctx, "b")
	if err != nil || !ok || got != 200 {
		t.Fatalf("load b: got %d ok=%v err=%v", got, ok, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestCheckpointStoreDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	cp := NewCheckpointStore(path, false)
	if err := cp.Save(context.Background(), "a", 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("disabled store wrote a file")
	}
}

func TestCheckpointStoreRejectsDirectory(t *testing.T) {
	cp := NewCheckpointStore(t.TempDir(), true)
	if _, _, err := cp.Load(context.Background(), "a"); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

func TestWithRetryCountsAttempts(t *testing.T) {
	attempts := 0
	var retried []int
	err := withRetry(context.Background(), 3, time.Millisecond, func(n int, _ error) { retried = append(retried, n) }, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return os.ErrDeadlineExceeded
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || len(retried) != 2 {
		t.Fatalf("attempts=%d retried=%v", attempts, retried)
	}
}

func TestWithRetryNegativeMeansNoRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), -1, time.Millisecond, nil, func(context.Context) error {
		attempts++
		return os.ErrClosed
	})
	if err == nil || attempts != 1 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestParsePoolAddress(t *testing.T) {
	got, err := ParsePoolAddress(" 0x88E6A0c2dDD26FEEb64F039a2c41296FcB3f5640 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640" {
		t.Fatalf("address mismatch: %s", got)
	}
	if _, err := ParsePoolAddress("0x123"); err == nil {
		t.Fatalf("expected error for short address")
	}
	list, err := ParsePoolAddresses([]string{"", "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"})
	if err != nil || len(list) != 1 {
		t.Fatalf("list=%v err=%v", list, err)
	}
}
