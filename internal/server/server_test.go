package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T, h http.Handler) (*Server, net.Listener) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(h, Options{ShutdownTimeout: 5 * time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second}, logger)
	return srv, ln
}

func TestServe_ShutsDownOnContextCancel(t *testing.T) {
	srv, ln := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	srv.OnShutdown("postgres", record("postgres"))
	srv.OnShutdown("redis", record("redis"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if len(order) != 2 || order[0] != "redis" || order[1] != "postgres" {
		t.Fatalf("shutdown order = %v, want [redis postgres]", order)
	}
}

func TestServe_ReportsComponentErrors(t *testing.T) {
	srv, ln := newTestServer(t, http.NotFoundHandler())

	boom := errors.New("boom")
	bang := errors.New("bang")
	stoppedFirst := false
	srv.OnShutdown("first", func(ctx context.Context) error {
		stoppedFirst = true
		return nil
	})
	srv.OnShutdown("also-broken", func(ctx context.Context) error { return bang })
	srv.OnShutdown("broken", func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Serve(ctx, ln)
	if !errors.Is(err, boom) || !errors.Is(err, bang) {
		t.Fatalf("expected every component error, got %v", err)
	}
	if !stoppedFirst {
		t.Error("components after a failing one must still stop")
	}
}
