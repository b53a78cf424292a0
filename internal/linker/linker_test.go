package linker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YKarmar/jobsync/internal/types"
)

type recordingStore struct {
	links []types.EmailLink
	err   error
}

func (s *recordingStore) Upsert(_ context.Context, link types.EmailLink) error {
	if s.err != nil {
		return s.err
	}
	s.links = append(s.links, link)
	return nil
}

func TestSenderName(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{`"Acme Recruiting" <jobs@acme.com>`, "Acme Recruiting"},
		{"Acme Talent <talent@acme.com>", "Acme Talent"},
		{"no-reply@greenhouse.io", "no-reply"},
		{"<careers@globex.com>", "careers"},
		{"=?UTF-8?B?5oub6IGY5Zui6Zif?= <hr@example.cn>", "招聘团队"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, SenderName(tt.from))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "given", Snippet(types.Email{Snippet: " given ", BodyText: "body"}))
	assert.Equal(t, "line one line two", Snippet(types.Email{BodyText: "line one\n\n  line two"}))

	long := Snippet(types.Email{BodyText: strings.Repeat("面", 250)})
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Equal(t, 203, len([]rune(long)))
}

func TestLink(t *testing.T) {
	s := &recordingStore{}
	l := New(s)
	app := &types.Application{ID: "app-1", MailboxID: "me@example.com"}
	email := types.Email{
		ID:      "mail-1",
		From:    "Acme Talent <talent@acme.com>",
		Subject: "Interview invitation",
		Date:    time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Snippet: "Let's talk",
	}

	require.NoError(t, l.Link(context.Background(), app, email, types.EmailTypeInterviewInvitation))
	require.Len(t, s.links, 1)
	got := s.links[0]
	assert.Equal(t, "app-1", got.ApplicationID)
	assert.Equal(t, "mail-1", got.EmailID)
	assert.Equal(t, "me@example.com", got.MailboxID)
	assert.Equal(t, "Acme Talent", got.SenderName)
	assert.Equal(t, types.EmailTypeInterviewInvitation, got.EmailType)

	s.err = errors.New("disk full")
	assert.Error(t, l.Link(context.Background(), app, email, types.EmailTypeInterviewInvitation))
}
