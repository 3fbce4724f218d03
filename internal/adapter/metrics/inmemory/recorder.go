package inmemory

import (
	"sync"

	"reefbase/internal/app/ports"
)

type Snapshot struct {
	SaveTotal     uint64            `json:"save_total"`
	SaveByOutcome map[string]uint64 `json:"save_by_outcome"`
	ActionTotal   uint64            `json:"action_total"`
	ActionSuccess uint64            `json:"action_success"`
	ActionFailure uint64            `json:"action_failure"`
	ByReason      map[string]uint64 `json:"by_reason"`
	BuildSuccess  uint64            `json:"build_success"`
	BuildFailure  uint64            `json:"build_failure"`
	Collects      uint64            `json:"collects"`
}

type Recorder struct {
	mu            sync.Mutex
	saves         map[ports.SaveOutcome]uint64
	actionSuccess uint64
	actionFailure uint64
	byReason      map[string]uint64
	buildSuccess  uint64
	buildFailure  uint64
	collects      uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		saves:    map[ports.SaveOutcome]uint64{},
		byReason: map[string]uint64{},
	}
}

// RecordSave ignores the empty outcome reported for internal errors.
func (r *Recorder) RecordSave(outcome ports.SaveOutcome) {
	if outcome == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[outcome]++
}

func (r *Recorder) RecordAction(ok bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.actionSuccess++
		return
	}
	r.actionFailure++
	if reason != "" {
		r.byReason[reason]++
	}
}

func (r *Recorder) RecordBuild(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.buildSuccess++
	} else {
		r.buildFailure++
	}
}

func (r *Recorder) RecordCollect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collects++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		SaveByOutcome: make(map[string]uint64, len(r.saves)),
		ActionSuccess: r.actionSuccess,
		ActionFailure: r.actionFailure,
		ActionTotal:   r.actionSuccess + r.actionFailure,
		ByReason:      make(map[string]uint64, len(r.byReason)),
		BuildSuccess:  r.buildSuccess,
		BuildFailure:  r.buildFailure,
		Collects:      r.collects,
	}
	for k, v := range r.saves {
		out.SaveByOutcome[string(k)] = v
		out.SaveTotal += v
	}
	for k, v := range r.byReason {
		out.ByReason[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}

var _ ports.EconomyMetrics = (*Recorder)(nil)
