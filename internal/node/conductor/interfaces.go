package conductor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrInterfaceBind = errors.New("conductor: failed to bind interface")

const (
	interfaceHost = "127.0.0.1"

	MsgListApps                = "list_apps"
	MsgListAppInterfaces       = "list_app_interfaces"
	MsgAppInfo                 = "app_info"
	MsgError                   = "error"
	maxRequestBytes      int64 = 1 << 20
)

// Request is one JSON message sent to an interface.
type Request struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type requestHandler func(ctx context.Context, req *Request) (interface{}, error)

// wsInterface serves one websocket endpoint on a loopback port.
type wsInterface struct {
	name     string
	port     uint16
	listener net.Listener
	server   *http.Server
	handle   requestHandler
	logger   *zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	wg    sync.WaitGroup
}

func listenInterface(name string, port uint16, handle requestHandler, logger *zerolog.Logger) (*wsInterface, error) {
	addr := net.JoinHostPort(interfaceHost, strconv.Itoa(int(port)))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %s", ErrInterfaceBind, name, addr, err)
	}
	bound := uint16(l.Addr().(*net.TCPAddr).Port)
	ifaceLogger := logger.With().Str("interface", name).Uint16("port", bound).Logger()

	w := &wsInterface{
		name:     name,
		port:     bound,
		listener: l,
		handle:   handle,
		logger:   &ifaceLogger,
		conns:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// Interfaces only listen on loopback; local web UIs connect from
			// arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	w.server = &http.Server{Handler: http.HandlerFunc(w.serveWS)}

	go func() {
		err := w.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("interface stopped serving")
		}
	}()
	w.logger.Info().Msgf("%s interface listening on %s", name, l.Addr())
	return w, nil
}

func (w *wsInterface) Port() uint16 {
	return w.port
}

func (w *wsInterface) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	if !w.track(conn) {
		conn.Close()
		return
	}
	defer w.untrack(conn)
	conn.SetReadLimit(maxRequestBytes)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Debug().Err(err).Msg("closing websocket connection")
			}
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		resp := Response{ID: req.ID, Type: req.Type}
		data, err := w.handle(r.Context(), &req)
		if err != nil {
			resp.Type = MsgError
			resp.Error = err.Error()
		} else {
			resp.Data = data
		}
		if err := conn.WriteJSON(&resp); err != nil {
			w.logger.Debug().Err(err).Msg("failed to write response")
			return
		}
	}
}

func (w *wsInterface) track(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conns == nil {
		return false
	}
	w.conns[conn] = struct{}{}
	w.wg.Add(1)
	return true
}

func (w *wsInterface) untrack(conn *websocket.Conn) {
	w.mu.Lock()
	delete(w.conns, conn)
	w.mu.Unlock()
	conn.Close()
	w.wg.Done()
}

// Close stops accepting connections, closes open ones and waits for their
// handlers to return.
func (w *wsInterface) Close(ctx context.Context) error {
	err := w.server.Shutdown(ctx)

	w.mu.Lock()
	for conn := range w.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "conductor shutting down"), deadline(ctx))
		conn.Close()
	}
	w.conns = nil
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(time.Second)
}
