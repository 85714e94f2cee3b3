package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage/grpccas"
)

func TestListBackends(t *testing.T) {
	var out bytes.Buffer
	cmd := newCmd(&out)
	cmd.SetArgs([]string{"--list-backends"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"localfs", "memory"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %s in %q", want, out.String())
		}
	}
	if strings.Contains(out.String(), "grpc\t") {
		t.Fatalf("grpc is a client-only backend: %q", out.String())
	}
}

func TestServe_LocalFS(t *testing.T) {
	d := &daemon{backend: "localfs", opts: map[string]string{"dir": t.TempDir()}, maxMsgBytes: 1 << 20}
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx, lis, zap.NewNop()) }()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := grpccas.Dial("passthrough:///bufnet", grpccas.DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	defer client.Close()

	doc := []byte(`{"LSP28TheGrid":[]}`)
	id, err := client.Put(doc)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id.String() != cidutil.CIDv1RawSHA256(doc) {
		t.Fatalf("cid=%s", id)
	}
	got, err := client.Get(id)
	if err != nil || !bytes.Equal(got, doc) {
		t.Fatalf("Get=%q,%v", got, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestServe_UnknownBackend(t *testing.T) {
	d := &daemon{backend: "s3"}
	lis := bufconn.Listen(1024)
	defer lis.Close()
	if err := d.serve(context.Background(), lis, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("got %v", err)
	}
}
