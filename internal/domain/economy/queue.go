package economy

import "time"

type JobType string

const (
	JobBuild   JobType = "build"
	JobUpgrade JobType = "upgrade"
)

type BuildJob struct {
	ID          string     `json:"id"`
	CellID      CellID     `json:"cellId"`
	BuildingID  BuildingID `json:"buildingId"`
	FromTier    int        `json:"fromTier"`
	ToTier      int        `json:"toTier"`
	Type        JobType    `json:"type"`
	StartedAtMs *int64     `json:"startedAtMs"`
	DurationMs  int64      `json:"durationMs"`
	CostPaid    bool       `json:"costPaid"`
}

func (j BuildJob) Started() bool { return j.StartedAtMs != nil }

// RemainingMs is zero for unscheduled jobs.
func (j BuildJob) RemainingMs(nowMs int64) int64 {
	if j.StartedAtMs == nil {
		return j.DurationMs
	}
	left := *j.StartedAtMs + j.DurationMs - nowMs
	if left < 0 {
		return 0
	}
	return left
}

// Queue holds at most one active job and a bounded list of queued ones.
type Queue struct {
	Active *BuildJob  `json:"active"`
	Queued []BuildJob `json:"queued"`
}

const DefaultQueueLimit = 1

func (q Queue) Len() int {
	n := len(q.Queued)
	if q.Active != nil {
		n++
	}
	return n
}

// Jobs lists the active job first, then queued jobs in order.
func (q Queue) Jobs() []BuildJob {
	out := make([]BuildJob, 0, q.Len())
	if q.Active != nil {
		out = append(out, *q.Active)
	}
	return append(out, q.Queued...)
}

func (q Queue) HasJobForCell(cell CellID) bool {
	for _, j := range q.Jobs() {
		if j.CellID == cell {
			return true
		}
	}
	return false
}

func (q Queue) HasJobForBuilding(id BuildingID) bool {
	for _, j := range q.Jobs() {
		if j.BuildingID == id {
			return true
		}
	}
	return false
}

func (q Queue) CanEnqueue(queueLimit int) bool {
	return q.Active == nil || len(q.Queued) < queueLimit
}

// EnqueueJob activates the job immediately when nothing is running, queues it when
// there is room, and otherwise returns q unchanged with ok=false.
func EnqueueJob(q Queue, job BuildJob, nowMs int64, queueLimit int) (Queue, bool) {
	if queueLimit < 0 {
		queueLimit = 0
	}
	if q.Active == nil {
		started := nowMs
		job.StartedAtMs = &started
		return Queue{Active: &job, Queued: append([]BuildJob{}, q.Queued...)}, true
	}
	if len(q.Queued) >= queueLimit {
		return q, false
	}
	job.StartedAtMs = nil
	queued := make([]BuildJob, 0, len(q.Queued)+1)
	queued = append(queued, q.Queued...)
	queued = append(queued, job)
	active := *q.Active
	return Queue{Active: &active, Queued: queued}, true
}

// TickQueue completes every job whose duration has elapsed, promoting the next queued
// job with startedAt = now each time. Completed jobs are returned in completion order.
func TickQueue(q Queue, nowMs int64) (Queue, []BuildJob) {
	var completed []BuildJob
	out := Queue{Queued: append([]BuildJob{}, q.Queued...)}
	if q.Active != nil {
		active := *q.Active
		out.Active = &active
	}
	for out.Active != nil {
		if out.Active.StartedAtMs == nil {
			started := nowMs
			out.Active.StartedAtMs = &started
		}
		if nowMs-*out.Active.StartedAtMs < out.Active.DurationMs {
			break
		}
		completed = append(completed, *out.Active)
		out.Active = nil
		if len(out.Queued) > 0 {
			next := out.Queued[0]
			out.Queued = out.Queued[1:]
			started := nowMs
			next.StartedAtMs = &started
			out.Active = &next
		}
	}
	return out, completed
}

// RemoveCellJobs drops every job targeting the cell. A removed active job is replaced
// by the next queued job starting at now.
func RemoveCellJobs(q Queue, cell CellID, nowMs int64) Queue {
	out := Queue{Queued: make([]BuildJob, 0, len(q.Queued))}
	for _, j := range q.Queued {
		if j.CellID != cell {
			out.Queued = append(out.Queued, j)
		}
	}
	if q.Active != nil && q.Active.CellID != cell {
		active := *q.Active
		out.Active = &active
		return out
	}
	if len(out.Queued) > 0 {
		next := out.Queued[0]
		out.Queued = out.Queued[1:]
		started := nowMs
		next.StartedAtMs = &started
		out.Active = &next
	}
	return out
}

// ApplyCompletedJob commits a finished job to the placements.
func ApplyCompletedJob(p Placements, job BuildJob) Placements {
	out := p.Clone()
	switch job.Type {
	case JobBuild:
		tier := job.ToTier
		if tier < 1 {
			tier = 1
		}
		out[job.CellID] = Placement{BuildingID: job.BuildingID, Tier: tier}
	case JobUpgrade:
		pl, ok := out[job.CellID]
		if !ok {
			return out
		}
		if job.ToTier > pl.Tier {
			pl.Tier = clampTier(job.ToTier)
		}
		out[job.CellID] = pl
	}
	return out
}

// BuildDuration applies the threat slowdown and perk speedup at enqueue time.
func BuildDuration(base time.Duration, buildTimeMul float64, perks []Perk) time.Duration {
	mul := buildTimeMul
	if mul <= 0 {
		mul = 1
	}
	for _, p := range perks {
		if p == PerkEfficientBuilders {
			mul *= 0.9
		}
	}
	return time.Duration(float64(base) * mul)
}
