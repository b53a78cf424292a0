package linker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"

	"github.com/YKarmar/jobsync/internal/types"
)

const snippetLen = 200

// LinkStore persists links keyed by (application id, email id)
type LinkStore interface {
	Upsert(ctx context.Context, link types.EmailLink) error
}

// Linker attaches email metadata to the application an email resolved to
type Linker struct {
	store LinkStore
}

func New(s LinkStore) *Linker {
	return &Linker{store: s}
}

// Link creates or overwrites the link between app and email
func (l *Linker) Link(ctx context.Context, app *types.Application, email types.Email, emailType types.EmailType) error {
	return l.store.Upsert(ctx, BuildLink(app, email, emailType))
}

func BuildLink(app *types.Application, email types.Email, emailType types.EmailType) types.EmailLink {
	return types.EmailLink{
		ApplicationID: app.ID,
		EmailID:       email.ID,
		MailboxID:     app.MailboxID,
		FromAddress:   email.From,
		SenderName:    SenderName(email.From),
		Subject:       email.Subject,
		Snippet:       Snippet(email),
		EmailDate:     email.Date,
		EmailType:     emailType,
	}
}

// SenderName derives a display name from a From header: the phrase when
// present, otherwise the local part of the address.
func SenderName(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		if name := strings.TrimSpace(addr.Name); name != "" {
			return name
		}
		return localPart(addr.Address)
	}
	// 无法解析时退回到尖括号前的部分
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return localPart(from)
}

func localPart(address string) string {
	if i := strings.Index(address, "@"); i > 0 {
		return address[:i]
	}
	return address
}

// Snippet prefers the adapter-provided snippet and falls back to the body
func Snippet(email types.Email) string {
	s := strings.TrimSpace(email.Snippet)
	if s == "" {
		s = strings.Join(strings.Fields(email.BodyText), " ")
	}
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	return string([]rune(s)[:snippetLen]) + "..."
}
