package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/app/session"
	"reefbase/internal/domain/economy"

	"github.com/gorilla/websocket"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type quietRand struct{}

func (quietRand) Float64() float64 { return 1 }
func (quietRand) Intn(int) int     { return 0 }

type stubRemote struct {
	builds   []economy.BuildingID
	actions  []economy.ActionKey
	answer   ports.RemoteBase
	err      error
	status   ports.RemoteBase
	statuses int
}

func (r *stubRemote) Build(_ context.Context, id economy.BuildingID) (ports.RemoteBase, error) {
	r.builds = append(r.builds, id)
	return r.answer, r.err
}

func (r *stubRemote) Collect(context.Context) (ports.RemoteBase, error) {
	return r.answer, nil
}

func (r *stubRemote) UseAction(_ context.Context, key economy.ActionKey) (ports.RemoteBase, error) {
	r.actions = append(r.actions, key)
	if r.err != nil {
		return ports.RemoteBase{}, r.err
	}
	return r.answer, nil
}

func (r *stubRemote) Status(context.Context) (ports.RemoteBase, error) {
	r.statuses++
	return r.status, nil
}

func newTestServer(cash float64, placements economy.Placements, remote ports.BaseRemote) (*Server, *session.Session) {
	snap := economy.NewBaseSnapshot()
	snap.CreatedAtMs = testNow.UnixMilli()
	for cell, pl := range placements {
		snap.Placements[cell] = pl
	}
	snap.Resources = &economy.Resources{Cash: cash}
	sess := session.New(session.Config{
		Catalog: economy.DefaultCatalog(),
		Rules:   economy.DefaultRuleset(),
		Rand:    quietRand{},
	}, snap, testNow)

	srv := NewServer(sess, remote)
	srv.now = func() time.Time { return testNow }
	srv.async = func(f func()) { f() }
	return srv, sess
}

func TestHandle_EnqueueBuildReconcilesBalances(t *testing.T) {
	remote := &stubRemote{answer: ports.RemoteBase{
		Resources: economy.Resources{Cash: 250},
		Levels:    map[economy.BuildingID]int{economy.BuildingRugSalvageYard: 1},
		Charges:   6,
		Version:   3,
	}}
	srv, sess := newTestServer(600, nil, remote)

	res := srv.Handle(context.Background(), Command{Type: CmdEnqueueBuild, ID: "1", Cell: "c2", Building: economy.BuildingRugSalvageYard})
	if !res.OK || res.ID != "1" || res.Command != CmdEnqueueBuild {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(remote.builds) != 1 || remote.builds[0] != economy.BuildingRugSalvageYard {
		t.Fatalf("server build not called: %+v", remote.builds)
	}
	v := sess.View(testNow)
	if v.Resources.Cash != 250 {
		t.Fatalf("cash got=%v want=250", v.Resources.Cash)
	}
	if len(v.Placements) != 0 || len(v.Queue) != 1 {
		t.Fatalf("server levels must not pre-place the queued building: placements=%+v queue=%d", v.Placements, len(v.Queue))
	}
}

func TestHandle_RejectedActionRestoresServerBalances(t *testing.T) {
	placed := economy.Placements{"c0": {BuildingID: economy.BuildingRugSalvageYard, Tier: 1}}
	remote := &stubRemote{
		err:    errors.New("worker api 409 COOLDOWN: cooling"),
		status: ports.RemoteBase{Resources: economy.Resources{Cash: 40}, Charges: 3, Version: 5},
	}
	srv, sess := newTestServer(0, placed, remote)

	res := srv.Handle(context.Background(), Command{Type: CmdUseAction, Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage})
	if !res.OK {
		t.Fatalf("local salvage should pay out first: %+v", res)
	}
	if remote.statuses != 1 {
		t.Fatalf("status fetches got=%d want=1", remote.statuses)
	}
	v := sess.View(testNow)
	if v.Resources.Cash != 40 || v.Charges != 3 {
		t.Fatalf("server refusal not applied: cash=%v charges=%d", v.Resources.Cash, v.Charges)
	}
	if v.Placements["c0"].Tier != 1 {
		t.Fatalf("placements must survive reconcile: %+v", v.Placements)
	}
}

func TestHandle_TransientFailureKeepsLocalResult(t *testing.T) {
	placed := economy.Placements{"c0": {BuildingID: economy.BuildingRugSalvageYard, Tier: 1}}
	remote := &stubRemote{err: fmt.Errorf("%w: POST /base/action: dial timeout", ports.ErrTransient)}
	srv, sess := newTestServer(0, placed, remote)

	if res := srv.Handle(context.Background(), Command{Type: CmdUseAction, Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage}); !res.OK {
		t.Fatalf("local salvage failed: %+v", res)
	}
	if remote.statuses != 0 {
		t.Fatalf("transient failure should not fetch status, got=%d", remote.statuses)
	}
	if v := sess.View(testNow); v.Resources.Cash != 120 {
		t.Fatalf("local payout lost: cash=%v want=120", v.Resources.Cash)
	}
}

func TestHandle_Rejections(t *testing.T) {
	srv, _ := newTestServer(100, nil, nil)

	res := srv.Handle(context.Background(), Command{Type: CmdUseAction, Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage})
	if res.OK || res.Reason != economy.ReasonNotPlaced {
		t.Fatalf("expected not placed rejection, got=%+v", res)
	}

	res = srv.Handle(context.Background(), Command{Type: CmdEnqueueBuild, Cell: "c1", Building: economy.BuildingRugSalvageYard})
	if res.OK || res.Error == "" {
		t.Fatalf("expected affordability rejection, got=%+v", res)
	}
	data, _ := res.Data.(map[string]any)
	if data["blocking"] != "cash" {
		t.Fatalf("blocking got=%v want=cash", data["blocking"])
	}

	if res := srv.Handle(context.Background(), Command{Type: "launch_rocket"}); res.OK || res.Error != "unknown command" {
		t.Fatalf("unexpected result for unknown command: %+v", res)
	}
}

func TestHandle_TriggerAndWipe(t *testing.T) {
	srv, sess := newTestServer(0, nil, nil)
	if res := srv.Handle(context.Background(), Command{Type: CmdTriggerDebuff, Debuff: economy.DebuffJeets}); !res.OK {
		t.Fatalf("trigger failed: %+v", res)
	}
	sess.Tick(testNow)
	v := sess.View(testNow)
	if len(v.Swarms) != 1 {
		t.Fatalf("expected one swarm, got=%d", len(v.Swarms))
	}
	u := v.Swarms[0].Units[0]
	res := srv.Handle(context.Background(), Command{Type: CmdWipeSwarm, X: u.Pos.X, Y: u.Pos.Y})
	rep, ok := res.Data.(session.WipeReport)
	if !res.OK || !ok || rep.Hits == 0 {
		t.Fatalf("expected a hit, got=%+v", res)
	}
}

func TestHandler_StreamsViewsAndAnswersCommands(t *testing.T) {
	srv, sess := newTestServer(600, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first struct {
		Type string       `json:"type"`
		View session.View `json:"view"`
	}
	if err := conn.ReadJSON(&first); err != nil || first.Type != TypeView || first.View.Resources.Cash != 600 {
		t.Fatalf("expected initial view, got=%+v err=%v", first, err)
	}

	if err := conn.WriteJSON(Command{Type: CmdEnqueueBuild, ID: "b1", Cell: "c0", Building: economy.BuildingRugSalvageYard}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var res Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read result: %v", err)
	}
	if res.Type != TypeResult || res.ID != "b1" || !res.OK {
		t.Fatalf("unexpected result: %+v", res)
	}

	srv.Broadcast(sess.View(testNow))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var pushed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &pushed); err != nil || string(pushed["type"]) != `"view"` {
		t.Fatalf("expected pushed view, got=%s", raw)
	}
	if srv.ClientCount() != 1 {
		t.Fatalf("clients got=%d want=1", srv.ClientCount())
	}
}
