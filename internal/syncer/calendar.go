package syncer

import "regexp"

// calendarSubjectRe matches subjects of calendar notifications sent by Google
// Calendar, Outlook and similar tools.
var calendarSubjectRe = regexp.MustCompile(`(?i)^\s*(` +
	`invitation:|updated invitation|accepted:|declined:|tentatively accepted:|` +
	`canceled event|cancelled event|event reminder|notification:.*@|` +
	`new event:|updated event:|邀请：|已接受：|已拒绝：` +
	`)`)

// IsCalendarArtifact reports whether the subject looks like a calendar
// notification rather than a message about an application.
func IsCalendarArtifact(subject string) bool {
	return calendarSubjectRe.MatchString(subject)
}
