package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/app/session"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/gorilla/websocket"
)

const (
	TypeView   = "view"
	TypeResult = "result"

	CmdEnqueueBuild    = "enqueue_build"
	CmdEnqueueUpgrade  = "enqueue_upgrade"
	CmdUseAction       = "use_action"
	CmdRemovePlacement = "remove_placement"
	CmdWipeSwarm       = "wipe_swarm"
	CmdTriggerDebuff   = "trigger_debuff"
)

type Command struct {
	Type     string             `json:"type"`
	ID       string             `json:"id,omitempty"`
	Cell     economy.CellID     `json:"cell,omitempty"`
	Building economy.BuildingID `json:"building,omitempty"`
	Action   economy.ActionID   `json:"action,omitempty"`
	X        float64            `json:"x,omitempty"`
	Y        float64            `json:"y,omitempty"`
	Debuff   economy.DebuffKind `json:"debuff,omitempty"`
}

type Result struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type viewMsg struct {
	Type string       `json:"type"`
	View session.View `json:"view"`
}

type Server struct {
	sess   *session.Session
	remote ports.BaseRemote
	now    func() time.Time

	// async runs server reconciliation off the read loop.
	async func(func())

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewServer bridges one session to any number of UI sockets. remote may be nil,
// in which case the local engine is the only authority.
func NewServer(sess *session.Session, remote ports.BaseRemote) *Server {
	return &Server{
		sess:   sess,
		remote: remote,
		now:    time.Now,
		async:  func(f func()) { go f() },
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[chan []byte]struct{}{},
	}
}

// Broadcast pushes a view to every connected socket. Slow sockets drop frames.
func (s *Server) Broadcast(v session.View) {
	b, err := json.Marshal(viewMsg{Type: TypeView, View: v})
	if err != nil {
		hlog.Errorf("encode view: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for out := range s.clients {
		select {
		case out <- b:
		default:
		}
	}
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, 16)
		s.mu.Lock()
		s.clients[out] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, out)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := writeJSON(conn, viewMsg{Type: TypeView, View: s.sess.View(s.now())}); err != nil {
			return
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd Command
			if err := json.Unmarshal(msg, &cmd); err != nil {
				s.reply(ctx, out, Result{Type: TypeResult, Error: "malformed command"})
				continue
			}
			s.reply(ctx, out, s.Handle(ctx, cmd))
		}
	}
}

func (s *Server) reply(ctx context.Context, out chan []byte, res Result) {
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

// Handle applies one UI command to the session.
func (s *Server) Handle(ctx context.Context, cmd Command) Result {
	res := Result{Type: TypeResult, ID: cmd.ID, Command: cmd.Type}
	now := s.now()

	switch cmd.Type {
	case CmdEnqueueBuild:
		job, err := s.sess.EnqueueBuild(cmd.Cell, cmd.Building, now)
		res = withErr(res, job, err)
		if err == nil {
			s.confirmBuild(ctx, job.BuildingID)
		}
	case CmdEnqueueUpgrade:
		job, err := s.sess.EnqueueUpgrade(cmd.Cell, now)
		res = withErr(res, job, err)
		if err == nil {
			s.confirmBuild(ctx, job.BuildingID)
		}
	case CmdUseAction:
		key := economy.ActionKey{Building: cmd.Building, Action: cmd.Action}
		r := s.sess.UseAction(key, now)
		res.OK, res.Reason = r.OK, r.Reason
		if !r.OK {
			res.Error = r.Message
			res.Data = map[string]any{"remainingMs": r.RemainingMs, "charges": r.Charges, "blocking": r.Blocking}
			break
		}
		res.Data = map[string]any{"cost": r.Cost, "reward": r.Reward, "ticketsCredited": r.TicketsCredited}
		if s.remote != nil {
			s.async(func() {
				s.reconcile(ctx, "action", func(c context.Context) (ports.RemoteBase, error) { return s.remote.UseAction(c, key) })
			})
		}
	case CmdRemovePlacement:
		res = withErr(res, nil, s.sess.RemovePlacement(cmd.Cell, now))
	case CmdWipeSwarm:
		rep := s.sess.WipeSwarmAt(cmd.X, cmd.Y, now)
		res.OK, res.Data = true, rep
	case CmdTriggerDebuff:
		res.OK = s.sess.TriggerDebuff(cmd.Debuff, now)
		if !res.OK {
			res.Error = "unknown or already active debuff"
		}
	default:
		res.Error = "unknown command"
	}
	return res
}

func withErr(res Result, data any, err error) Result {
	if err == nil {
		res.OK, res.Data = true, data
		return res
	}
	res.Error = err.Error()
	var afford *session.AffordabilityError
	if errors.As(err, &afford) {
		res.Reason = afford.Reason
		res.Data = map[string]any{"blocking": afford.Blocking, "cost": afford.Cost}
	}
	return res
}

// confirmBuild mirrors a local build on the server.
func (s *Server) confirmBuild(ctx context.Context, id economy.BuildingID) {
	if s.remote == nil {
		return
	}
	s.async(func() {
		s.reconcile(ctx, "build", func(c context.Context) (ports.RemoteBase, error) { return s.remote.Build(c, id) })
	})
}

// reconcile takes balances and charges from the server. Server tiers land
// instantly while the local job is still queued, so levels are ignored. When
// the server refuses the call, the local result is replaced by its current
// status; only transport failures and throttling leave local balances alone.
func (s *Server) reconcile(ctx context.Context, op string, call func(context.Context) (ports.RemoteBase, error)) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	remote, err := call(rctx)
	if err != nil {
		if errors.Is(err, ports.ErrTransient) || errors.Is(err, ports.ErrThrottled) {
			hlog.Warnf("server %s unavailable, keeping local result: %v", op, err)
			return
		}
		hlog.Infof("server %s rejected, restoring server balances: %v", op, err)
		if remote, err = s.remote.Status(rctx); err != nil {
			hlog.Warnf("server status after rejected %s: %v", op, err)
			return
		}
	}
	remote.Levels = nil
	s.sess.Reconcile(remote, s.now())
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
