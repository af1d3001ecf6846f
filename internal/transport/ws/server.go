package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/multiworld"
	"conduitcraft.ai/internal/sim/world"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

// Options carries the handshake payload shared by every session.
type Options struct {
	Catalogs      protocol.CatalogDigests
	SessionOutbox int
	MaxLineBytes  int
}

type Server struct {
	worlds *multiworld.Manager
	opts   Options
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(worlds *multiworld.Manager, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.SessionOutbox <= 0 {
		opts.SessionOutbox = 256
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 1024
	}
	return &Server{
		worlds: worlds,
		opts:   opts,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	id      string
	client  string
	worldID string
	out     chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sess, subscribed := s.handshake(ctx, conn)
		if sess == nil {
			return
		}
		if subscribed {
			defer s.worlds.Unsubscribe(sess.worldID, sess.id)
		}
		s.log.Printf("session %s client=%q world=%s power=%v", sess.id, sess.client, sess.worldID, subscribed)

		// Writer goroutine: the only writer once WELCOME is out.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.reply(ctx, sess, protocol.ResultMsg{Code: protocol.ErrProtoBadRequest, Message: "malformed message"})
				continue
			}
			if base.Type != protocol.TypeCommand {
				s.reply(ctx, sess, protocol.ResultMsg{Code: protocol.ErrProtoBadRequest, Message: "unexpected message type " + base.Type})
				continue
			}
			var cmd protocol.CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				s.reply(ctx, sess, protocol.ResultMsg{Code: protocol.ErrProtoBadRequest, Message: "malformed COMMAND"})
				continue
			}
			s.reply(ctx, sess, s.runCommand(ctx, sess, cmd))
		}
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) runCommand(ctx context.Context, sess *session, cmd protocol.CommandMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{ReqID: cmd.ReqID}
	if cmd.ProtocolVersion != "" && cmd.ProtocolVersion != protocol.Version {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "bad protocol_version"
		return res
	}
	if len(cmd.Line) > s.opts.MaxLineBytes {
		res.Code, res.Message = protocol.ErrBadRequest, "command line too long"
		return res
	}
	worldID := strings.TrimSpace(cmd.WorldID)
	if worldID == "" {
		worldID = sess.worldID
	}
	res.WorldID = worldID

	out, err := s.worlds.Submit(ctx, worldID, world.Command{Actor: sess.client, Line: cmd.Line})
	switch {
	case errors.Is(err, multiworld.ErrWorldNotFound):
		res.Code, res.Message = protocol.ErrWorldNotFound, "unknown world "+worldID
		return res
	case errors.Is(err, world.ErrWorldBusy), errors.Is(err, context.DeadlineExceeded):
		res.Code, res.Message = protocol.ErrWorldBusy, "world busy, retry"
		return res
	case err != nil:
		res.Code, res.Message = protocol.ErrInternal, err.Error()
		return res
	}
	res.OK = out.OK
	res.Code = out.Code
	res.Message = strings.Join(out.Lines, "\n")
	res.ServerTick = out.Tick
	return res
}

func (s *Server) reply(ctx context.Context, sess *session, res protocol.ResultMsg) {
	res.Type = protocol.TypeResult
	res.ProtocolVersion = protocol.Version
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	// Results are not dropped; wait for the writer instead.
	select {
	case sess.out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return nil, false
	}
	selected, ok := negotiate(hello)
	if !ok {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil, false
	}
	client := strings.TrimSpace(hello.ClientName)
	if client == "" {
		client = "client"
	}

	sess := &session{
		id:      uuid.NewString(),
		client:  client,
		worldID: s.worlds.Join(client, hello.WorldPreference),
		out:     make(chan []byte, s.opts.SessionOutbox),
	}
	rt := s.worlds.Runtime(sess.worldID)
	if rt == nil {
		closeWith(conn, websocket.CloseInternalServerErr, "no world")
		return nil, false
	}

	cfg := rt.World.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SelectedVersion: selected,
		SessionID:       sess.id,
		CurrentWorldID:  sess.worldID,
		WorldParams: protocol.WorldParams{
			TickRateHz:     cfg.TickRateHz,
			ChunkSize:      [3]int{store.ChunkSize, cfg.Bounds.MaxY - cfg.Bounds.MinY + 1, store.ChunkSize},
			MinY:           cfg.Bounds.MinY,
			MaxY:           cfg.Bounds.MaxY,
			MaxNetworkSize: cfg.MaxNetworkSize,
		},
		Catalogs:      s.opts.Catalogs,
		WorldManifest: s.worlds.Manifest(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, false
	}

	if !hello.SubscribePower {
		return sess, false
	}
	if err := s.worlds.Subscribe(ctx, sess.worldID, sess.id, sess.out); err != nil {
		s.log.Printf("session %s: subscribe %s: %v", sess.id, sess.worldID, err)
		return sess, false
	}
	return sess, true
}

func negotiate(h protocol.HelloMsg) (string, bool) {
	if h.ProtocolVersion == protocol.Version {
		return protocol.Version, true
	}
	for _, v := range h.SupportedVersions {
		if v == protocol.Version {
			return protocol.Version, true
		}
	}
	return "", false
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
