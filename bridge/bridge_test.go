package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunReturnsOperationResult(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	got, err := Run(context.Background(), p, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestRunPreservesStorageError(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	sentinel := errors.New("row not found")
	_, err := Run(context.Background(), p, func(context.Context) (string, error) {
		return "", sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("storage error must pass through unchanged, got %v", err)
	}
	if errors.Is(err, ErrWorkerFailure) {
		t.Fatal("storage error must not be classified as a worker failure")
	}
}

func TestRunIsolatesPanic(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	_, err := Run(context.Background(), p, func(context.Context) (int, error) {
		panic("driver corrupted its state")
	})
	if !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("expected ErrWorkerFailure, got %v", err)
	}

	// The worker that recovered must still serve later operations.
	got, err := Run(context.Background(), p, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("pool unusable after panic: %v (got %d)", err, got)
	}
}

func TestRunHonorsContextWhileWaiting(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Run(context.Background(), p, func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()

	// Give the blocking task time to occupy the only worker.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, p, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("caller blocked far past its deadline")
	}

	close(release)
	wg.Wait()
}

func TestRunAfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()

	_, err := Run(context.Background(), p, func(context.Context) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
