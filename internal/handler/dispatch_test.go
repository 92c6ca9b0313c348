package handler

import (
	"context"
	"io"
	"net"
	"testing"
)

func TestDispatchBlockedHostReturns403(t *testing.T) {
	deps := testDeps(t, []string{"ads.example"})

	clientSide, proxySide := net.Pipe()
	go func() {
		clientSide.Write([]byte("GET http://ads.example/x HTTP/1.0\r\n\r\n"))
	}()

	done := make(chan struct{})
	go func() {
		Dispatch(context.Background(), proxySide, deps)
		proxySide.Close()
		close(done)
	}()

	got, err := io.ReadAll(clientSide)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	<-done
	want := "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDispatchParseFailureClosesQuietly(t *testing.T) {
	deps := testDeps(t, nil)

	clientSide, proxySide := net.Pipe()
	go func() {
		clientSide.Write([]byte("garbage no newline"))
		clientSide.Close()
	}()

	done := make(chan struct{})
	go func() {
		Dispatch(context.Background(), proxySide, deps)
		proxySide.Close()
		close(done)
	}()

	got, _ := io.ReadAll(clientSide)
	<-done
	if len(got) != 0 {
		t.Fatalf("expected no reply on parse failure, got %q", got)
	}
}
