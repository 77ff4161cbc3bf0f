package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(ln.Addr().String(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestNewAppliesOptions(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), WithTimeouts(time.Second, 2*time.Second), WithShutdownTimeout(3*time.Second))
	if srv.inner.ReadHeaderTimeout != time.Second || srv.inner.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts %v %v", srv.inner.ReadHeaderTimeout, srv.inner.WriteTimeout)
	}
	if srv.shutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", srv.shutdownTimeout)
	}
	if srv.Addr() != ":0" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
}
