// Package lifecycle decides how an incoming email moves an application along
// applied -> interviewing -> offer -> closed.
//
// Progress only moves forward by rank. A rejection is the single exception: it
// always closes the application as rejected, whatever stage it had reached.
package lifecycle

import "github.com/YKarmar/jobsync/internal/types"

// Decision is the outcome of evaluating one email against one application
type Decision struct {
	Apply       bool
	Status      types.Status
	CloseReason *types.CloseReason
}

// Initial returns the status a new application starts in when created from an
// email of the given type.
func Initial(t types.EmailType) (types.Status, *types.CloseReason, bool) {
	status, ok := t.ImpliedStatus()
	if !ok {
		return "", nil, false
	}
	return status, closeReasonFor(t), true
}

// Decide compares the application's current state with the state implied by
// the email type.
func Decide(app *types.Application, t types.EmailType) Decision {
	target, ok := t.ImpliedStatus()
	if !ok {
		return Decision{}
	}
	reason := closeReasonFor(t)

	if t == types.EmailTypeRejection {
		// 已经是 closed/rejected 时无需重复写入
		if app.Status == types.StatusClosed && app.CloseReason != nil && *app.CloseReason == types.CloseReasonRejected {
			return Decision{}
		}
		return Decision{Apply: true, Status: target, CloseReason: reason}
	}

	if target.Rank() > app.Status.Rank() {
		return Decision{Apply: true, Status: target, CloseReason: reason}
	}
	return Decision{}
}

func closeReasonFor(t types.EmailType) *types.CloseReason {
	if t != types.EmailTypeRejection {
		return nil
	}
	reason := types.CloseReasonRejected
	return &reason
}
