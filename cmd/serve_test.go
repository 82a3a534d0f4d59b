package cmd

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSubscription struct {
	startErr error
	stopped  atomic.Bool
}

func (f *fakeSubscription) Start(context.Context) error { return f.startErr }

func (f *fakeSubscription) Stop() error {
	f.stopped.Store(true)
	return nil
}

type fakeWatcher struct {
	ran atomic.Bool
}

func (f *fakeWatcher) Run(ctx context.Context) error {
	f.ran.Store(true)
	<-ctx.Done()
	return nil
}

func TestRunServeSubscriberFailureStartsNothing(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{startErr: errors.New("nats: permissions violation")}
	watch := &fakeWatcher{}
	server := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}

	done := make(chan error, 1)
	go func() { done <- runServe(context.Background(), server, sub, watch) }()

	select {
	case err := <-done:
		if !errors.Is(err, sub.startErr) {
			t.Fatalf("runServe() error = %v, want subscriber start error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runServe() did not return after subscriber start failed")
	}
	if watch.ran.Load() {
		t.Fatalf("watcher ran although the subscriber failed to start")
	}
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestRunServeStopsEverythingOnCancel(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{}
	watch := &fakeWatcher{}
	server := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, server, sub, watch) }()

	deadline := time.Now().Add(5 * time.Second)
	for !watch.ran.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe() error = %v", err)
		}
	case <-time.After(shutdownTimeout + 5*time.Second):
		t.Fatalf("runServe() did not return after cancel")
	}
	if !sub.stopped.Load() {
		t.Fatalf("subscriber was not stopped")
	}
}
