package run

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"kisanvoice/internal/control"
)

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: "bad request"})
		return
	}
	enc := json.NewEncoder(conn)
	switch req.Op {
	case control.OpStatus:
		_ = enc.Encode(s.status())
	case control.OpHealth:
		_ = enc.Encode(control.SimpleResponse{OK: true, Message: "ok"})
	case control.OpReload:
		_ = enc.Encode(s.reload())
	case control.OpListen:
		if !req.Wait {
			lang := s.startListening(req.Lang, nil)
			_ = enc.Encode(control.ListenResult{OK: true, Lang: lang})
			return
		}
		_ = enc.Encode(s.listenAndWait(ctx, req.Lang))
	case control.OpStop:
		s.stopListening()
		_ = enc.Encode(control.SimpleResponse{OK: true, Message: "stopped"})
	case control.OpSpeak:
		if req.Message == nil {
			_ = enc.Encode(control.SimpleResponse{OK: false, Message: "message required"})
			return
		}
		_ = enc.Encode(s.toggleSpeak(*req.Message))
	default:
		_ = enc.Encode(control.SimpleResponse{OK: false, Message: "unknown op " + req.Op})
	}
}

// listenAndWait starts a session and blocks until it ends.
func (s *Server) listenAndWait(ctx context.Context, lang string) control.ListenResult {
	ch := make(chan control.ListenResult, 1)
	lang = s.startListening(lang, ch)
	limit := s.cfg.CaptureTimeout() + s.cfg.TranscribeTimeout() + 5*time.Second
	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res
	case <-timer.C:
		return control.ListenResult{OK: false, Lang: lang, Error: "timed out waiting for transcript"}
	case <-ctx.Done():
		return control.ListenResult{OK: false, Lang: lang, Error: "daemon shutting down"}
	}
}
