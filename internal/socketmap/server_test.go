/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package socketmap

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zuplu/emailcheck"
	"github.com/Zuplu/emailcheck/internal/utils/netstring"
	"github.com/foxcpp/go-mockdns"
)

func startServer(t *testing.T, address string) (string, *emailcheck.Engine) {
	t.Helper()
	dnsSrv, err := mockdns.NewServer(map[string]mockdns.Zone{
		"example.com.": {MX: []net.MX{{Host: "mx.example.com.", Pref: 10}}},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dnsSrv.Close() })

	s := emailcheck.DefaultSettings()
	s.Dns.Address = dnsSrv.LocalAddr().String()
	s.Defaults.Timeout = time.Second
	s.RejectRoleAddresses = true
	s.BlacklistDomains = []emailcheck.Pattern{emailcheck.Exact("spam.example")}
	e, err := emailcheck.New(s)
	if err != nil {
		t.Fatal(err)
	}

	l, err := Listen(address)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := New(func() *emailcheck.Engine { return e })
	go func() { done <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve() did not stop")
		}
	})
	if l.Addr().Network() == "unix" {
		return "unix:" + l.Addr().String(), e
	}
	return l.Addr().String(), e
}

func TestSocketmapQueries(t *testing.T) {
	t.Parallel()
	addr, _ := startServer(t, "127.0.0.1:0")
	conn, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	replies := netstring.NewScanner(conn)

	tests := []struct {
		query string
		reply string
	}{
		{"emailcheck User@Example.com", "OK user@example.com"},
		{"emailcheck admin@example.com", "NOTFOUND "},
		{"emailcheck user@spam.example", "NOTFOUND "},
		{"emailcheck user@missing.example", "NOTFOUND "},
		{"emailcheck not-an-address", "NOTFOUND "},
		{"emailcheck", "PERM malformed query"},
	}
	// several requests share one connection, like Postfix does
	for _, tc := range tests {
		if _, err := conn.Write(netstring.Marshal(tc.query)); err != nil {
			t.Fatal(err)
		}
		if !replies.Scan() {
			t.Fatalf("No reply to %q: %v", tc.query, replies.Err())
		}
		if got := replies.Text(); got != tc.reply {
			t.Errorf("Query %q: got %q, want %q", tc.query, got, tc.reply)
		}
	}
}

func TestSocketmapMalformedNetstring(t *testing.T) {
	t.Parallel()
	addr, _ := startServer(t, "127.0.0.1:0")
	conn, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	conn.Write([]byte("5:hello;"))
	replies := netstring.NewScanner(conn)
	if !replies.Scan() {
		t.Fatalf("No reply: %v", replies.Err())
	}
	if got := replies.Text(); got != "PERM "+netstring.ErrMissingComma.Error() {
		t.Errorf("Got %q", got)
	}
}

func TestSocketmapJSON(t *testing.T) {
	t.Parallel()
	addr, _ := startServer(t, "unix:"+filepath.Join(t.TempDir(), "emailcheck.sock"))
	conn, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	conn.Write(netstring.Marshal("JSON info+x@Example.com"))
	raw, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	var report emailcheck.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("Invalid JSON %q: %v", raw, err)
	}
	if report.Valid || !report.RoleAddress || !report.DomainValid || report.Normalized != "info+x@example.com" {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestSocketmapPurge(t *testing.T) {
	t.Parallel()
	addr, e := startServer(t, "127.0.0.1:0")
	ctx := context.Background()
	e.Cache().Set(ctx, "mx:example.org", true, time.Hour)

	conn, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	conn.Write(netstring.Marshal("PURGE"))
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Cache purged.\n" {
		t.Errorf("Got %q", out)
	}
	if e.Cache().Exists(ctx, "mx:example.org") {
		t.Error("Expected the cache to be empty")
	}
}
