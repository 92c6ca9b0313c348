package proxy

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Threads = 4
	cfg.Queue.Capacity = 8
	cfg.Metrics.Enabled = false
	cfg.Tracing.Enabled = false
	cfg.Log.Path = filepath.Join(t.TempDir(), "proxy.log")
	cfg.Blocklist.Path = filepath.Join(t.TempDir(), "blocklist.txt")
	writeBlocklist(t, cfg.Blocklist.Path, "ads.example")
	return cfg
}

func writeBlocklist(t *testing.T, path, entry string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(entry+"\n"), 0o644); err != nil {
		t.Fatalf("write blocklist: %v", err)
	}
}

func startTestServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()
	srv, err := NewServer(testConfig(t))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	addr := srv.Addr()

	t.Cleanup(func() {
		select {
		case <-errCh:
		default:
		}
	})

	return srv, addr
}

func startEchoOrigin(t *testing.T, body string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				conn.Read(buf)
				conn.Write([]byte(body))
			}()
		}
	}()

	return ln.Addr().String()
}

func TestEndToEndCacheMissThenHit(t *testing.T) {
	_, addr := startTestServer(t)
	origin := startEchoOrigin(t, "HTTP/1.0 200 OK\r\n\r\nBODY")

	req := "GET http://" + origin + "/index HTTP/1.0\r\n\r\n"

	first := sendRequest(t, addr.String(), req)
	if first != "HTTP/1.0 200 OK\r\n\r\nBODY" {
		t.Fatalf("unexpected first response: %q", first)
	}

	second := sendRequest(t, addr.String(), req)
	if second != first {
		t.Fatalf("expected identical cached response, got %q", second)
	}
}

func TestEndToEndBlockedHost(t *testing.T) {
	_, addr := startTestServer(t)
	req := "GET http://ads.example/x HTTP/1.0\r\n\r\n"

	got := sendRequest(t, addr.String(), req)
	want := "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEndToEndConnectTunnel(t *testing.T) {
	_, addr := startTestServer(t)
	origin := startEchoOrigin(t, "")

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("CONNECT " + origin + " HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write connect: %v", err)
	}

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != "HTTP/1.1 200 Connection established\r\n" {
		t.Fatalf("unexpected status: %q", status)
	}
}

func sendRequest(t *testing.T, addr, req string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(got)
}
