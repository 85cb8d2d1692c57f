/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

// Package socketmap answers Postfix socketmap lookups with address checks.
//
// Requests are netstrings of the form "<name> <address>". An acceptable
// address is answered with "OK <normalized address>", anything else with
// "NOTFOUND ". Two extra commands serve the CLI: "JSON <address>" replies
// with a JSON report and "PURGE" clears the cache.
package socketmap

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Zuplu/emailcheck"
	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/Zuplu/emailcheck/internal/utils/netstring"
)

const (
	REQUEST_TIMEOUT = 10 * time.Second
	IDLE_TIMEOUT    = 5 * time.Minute
)

// Server serves one Engine. The engine getter is consulted per request so a
// reconfigured engine takes effect without restarting.
type Server struct {
	engine func() *emailcheck.Engine

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
}

func New(engine func() *emailcheck.Engine) *Server {
	return &Server{engine: engine}
}

// Listen opens address, either host:port or unix:/path/to/socket.
func Listen(address string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(address, "unix:"); ok {
		// a socket left over from an unclean shutdown blocks the bind
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		l, err := net.Listen("unix", path)
		if err != nil {
			return nil, err
		}
		if err := os.Chmod(path, 0o666); err != nil {
			l.Close()
			return nil, err
		}
		return l, nil
	}
	return net.Listen("tcp", address)
}

// Dial connects to a server started with Listen on the same address.
func Dial(address string) (net.Conn, error) {
	if path, ok := strings.CutPrefix(address, "unix:"); ok {
		return net.Dial("unix", path)
	}
	return net.Dial("tcp", address)
}

// Serve accepts connections until ctx is done, then waits for open
// connections to finish their current request.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	log.Infof("Listening on %s...", l.Addr())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.conns.Wait()
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Warnf("Error accepting connection: %v", err)
				continue
			}
			return err
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Addr is the listening address once Serve runs.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	scanner := netstring.NewScanner(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(IDLE_TIMEOUT))
		if !scanner.Scan() {
			break
		}
		closeAfter, err := s.handleRequest(ctx, conn, scanner.Text())
		if err != nil {
			log.Debugf("Error writing reply: %v", err)
			return
		}
		if closeAfter {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			log.Warnf("Malformed request: %v", err)
			conn.Write(netstring.Marshal("PERM " + err.Error()))
		}
	}
}

// handleRequest writes the reply and tells whether the connection should
// be closed afterwards, as the CLI commands expect.
func (s *Server) handleRequest(ctx context.Context, conn net.Conn, query string) (bool, error) {
	e := s.engine()
	name, key, _ := strings.Cut(strings.TrimSpace(query), " ")
	key = strings.TrimSpace(key)

	switch strings.ToLower(name) {
	case "purge":
		e.ClearCache(ctx)
		log.Info("Cache purged")
		_, err := conn.Write([]byte("Cache purged.\n"))
		return true, err
	case "json":
		ctx, cancel := context.WithTimeout(ctx, REQUEST_TIMEOUT)
		defer cancel()
		b, err := json.Marshal(e.Report(ctx, key))
		if err != nil {
			return true, err
		}
		_, err = conn.Write(append(b, '\n'))
		return true, err
	}

	if name == "" || key == "" {
		log.Warnf("Malformed query: %q", query)
		_, err := conn.Write(netstring.Marshal("PERM malformed query"))
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, REQUEST_TIMEOUT)
	defer cancel()
	c := e.Checker(key)
	if !c.Valid(ctx) {
		log.Infof("Rejected %q", c.RedactedEmail())
		_, err := conn.Write(netstring.Marshal("NOTFOUND "))
		return false, err
	}
	log.Infof("Accepted %q", c.RedactedEmail())
	_, err := conn.Write(netstring.Marshal("OK " + c.NormalizedEmail()))
	return false, err
}
