package syncer

import "time"

// Summary aggregates the outcome of one sync run
type Summary struct {
	RunID      string    `json:"run_id"`
	MailboxID  string    `json:"mailbox_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Scanned          int `json:"scanned"`
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	Unchanged        int `json:"unchanged"`
	AlreadyProcessed int `json:"already_processed"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
}

func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeCreated
	outcomeUpdated
	outcomeUnchanged
)

func (o outcome) String() string {
	switch o {
	case outcomeSkipped:
		return "skipped"
	case outcomeCreated:
		return "created"
	case outcomeUpdated:
		return "updated"
	case outcomeUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

func (s *Summary) add(o outcome) {
	switch o {
	case outcomeSkipped:
		s.Skipped++
	case outcomeCreated:
		s.Created++
	case outcomeUpdated:
		s.Updated++
	case outcomeUnchanged:
		s.Unchanged++
	default:
		s.Failed++
	}
}
