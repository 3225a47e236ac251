package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"github.com/gorilla/websocket"

	"evenup_web/internal/auth"
	"evenup_web/internal/backend"
	"evenup_web/internal/gate"
	"evenup_web/internal/rbac"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type gateMessage struct {
	State    string `json:"state"`
	Required string `json:"required"`
	Role     string `json:"role,omitempty"`
}

// browserSource re-opens the browser's session store on every lookup, so
// a long-lived socket sees sign-ins and sign-outs made by other requests.
type browserSource struct {
	mgr     *session.Manager
	factory *backend.ClientFactory
	req     *http.Request
	client  *backend.AuthClient
}

func (s *browserSource) GetSession(ctx context.Context) (*backend.Session, error) {
	store, err := s.mgr.Start(ctx, discardWriter{}, s.req)
	if err != nil {
		return nil, err
	}
	return s.factory.Client(backend.NewCookieStorage(store)).GetSession(ctx)
}

func (s *browserSource) OnAuthStateChange(fn backend.Handler) backend.Subscription {
	return s.client.OnAuthStateChange(fn)
}

// discardWriter absorbs the cookie a session manager may write for a
// request whose response has already been hijacked.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (discardWriter) WriteHeader(int)             {}

// GateStream pushes the browser's gate state over a websocket until the
// client goes away. The gate is mounted for the life of the socket.
func GateStream(mgr *session.Manager, factory *backend.ClientFactory, roles gate.RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		required, ok := rbac.ParseRole(c.DefaultQuery("required", rbac.RoleViewer.String()))
		if !ok {
			required = rbac.RoleViewer
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		src := &browserSource{mgr: mgr, factory: factory, req: c.Request, client: auth.Client(c)}
		g := gate.New(src, roles, gate.WithRequiredRole(required))
		defer g.Unmount()

		// Only the newest snapshot matters to the browser.
		updates := make(chan gate.Snapshot, 1)
		remove := g.OnChange(func(s gate.Snapshot) {
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		})
		defer remove()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go g.Mount(ctx)

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-closed:
				return
			case snap := <-updates:
				msg := gateMessage{State: snap.State.String(), Required: snap.Required.String()}
				if snap.HasRole {
					msg.Role = snap.Role.String()
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(msg); err != nil {
					slog.Debug("gate stream write failed", "error", err)
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
