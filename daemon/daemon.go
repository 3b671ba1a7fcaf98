// Package daemon implements the optional Unix-domain inclusion-proof
// server of spec §6: clients write a userhash, the daemon writes a fresh
// inclusion proof file and replies with its path.
package daemon

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/otter-sec/por-v2/core"
	"github.com/otter-sec/por-v2/ledger"
)

// DefaultSocketPath is the daemon's well-known listen address (spec §6).
const DefaultSocketPath = "/tmp/por.sock"

// Server answers inclusion-proof requests over a Unix socket against a
// single, already-proved pipeline run. It holds no mutable state beyond
// what ProveUserInclusion itself needs, so one Server can serve many
// connections concurrently.
type Server struct {
	SocketPath string
	OutDir     string

	Ledger *ledger.Ledger
	Tree   *core.Tree
	Nonces []uint64

	Log zerolog.Logger
}

// ListenAndServe opens the Unix socket and serves connections until
// listener.Accept fails. The listener is not exposed to the caller, so
// nothing outside this function closes it.
func (s *Server) ListenAndServe() error {
	if s.SocketPath == "" {
		s.SocketPath = DefaultSocketPath
	}
	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing stale socket %s: %v", core.ErrIOFailure, s.SocketPath, err)
	}

	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %v", core.ErrIOFailure, s.SocketPath, err)
	}
	defer listener.Close()

	s.Log.Info().Str("socket", s.SocketPath).Msg("daemon listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("%w: accepting connection: %v", core.ErrIOFailure, err)
		}
		go s.handleConn(conn)
	}
}

// handleConn reads newline-delimited userhashes from conn and replies
// with the absolute path of the proof file it wrote for each, one
// connection serving any number of requests (spec §6).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		userHash := strings.TrimSpace(scanner.Text())
		if userHash == "" {
			continue
		}

		path, err := s.handleRequest(userHash)
		if err != nil {
			s.Log.Error().Err(err).Str("user_hash", userHash).Msg("inclusion request failed")
			return
		}
		if _, err := fmt.Fprintln(conn, path); err != nil {
			s.Log.Error().Err(err).Msg("writing response")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.Log.Error().Err(err).Msg("reading request")
	}
}

func (s *Server) handleRequest(userHash string) (string, error) {
	proof, err := core.ProveUserInclusionByHash(userHash, s.Ledger, s.Tree, s.Nonces)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", core.ErrIOFailure, s.OutDir, err)
	}
	path, err := filepath.Abs(filepath.Join(s.OutDir, fmt.Sprintf("%s.json", userHash)))
	if err != nil {
		return "", fmt.Errorf("%w: resolving output path: %v", core.ErrIOFailure, err)
	}
	if err := core.WriteDataToFile(path, *proof); err != nil {
		return "", err
	}
	return path, nil
}
