package main

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Acme Recruiting <jobs@acme.example>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Interview invitation\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"We would like to invite you to interview.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>We would like to invite you to <b>interview</b>.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Disposition: attachment; filename=\"notes.txt\"\r\n" +
	"\r\n" +
	"attachment text\r\n" +
	"--outer--\r\n"

func TestExtractBody_Multipart(t *testing.T) {
	text, htmlBody, err := extractBody(strings.NewReader(multipartMessage))
	require.NoError(t, err)
	assert.Contains(t, text, "We would like to invite you to interview.")
	assert.NotContains(t, text, "attachment text")
	assert.Contains(t, htmlBody, "<b>interview</b>")
}

func TestExtractBody_SinglePartHTML(t *testing.T) {
	raw := "From: jobs@acme.example\r\n" +
		"Subject: Offer\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><h1>Offer</h1><p>Congratulations &amp; welcome</p></body></html>\r\n"

	text, htmlBody, err := extractBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, "Offer Congratulations & welcome", htmlToText(htmlBody))
}

func TestHTMLToText_DropsScripts(t *testing.T) {
	got := htmlToText("<style>p{color:red}</style><p>Hello</p><script>alert(1)</script>  <p>there</p>")
	assert.Equal(t, "Hello there", got)
}

func TestHTMLToText_DecodesEntities(t *testing.T) {
	got := htmlToText("<p>We&#8217;re sorry &mdash; Soci&eacute;t&eacute; G&eacute;n&eacute;rale</p><p>Caf&#xE9;&nbsp;team</p>")
	assert.Equal(t, "We’re sorry — Société Générale Café team", got)
}

func TestHTMLToText_InlineTagsKeepWords(t *testing.T) {
	got := htmlToText("<p>Invite to <b>interview</b>.</p><div>Acme</div>")
	assert.Equal(t, "Invite to interview. Acme", got)
}

func TestConvertToEmail(t *testing.T) {
	date := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid: 42,
		Envelope: &imap.Envelope{
			Date:      date,
			Subject:   "Thanks for applying",
			MessageId: "<abc@acme.example>",
			From:      []*imap.Address{{PersonalName: "Acme Recruiting", MailboxName: "jobs", HostName: "acme.example"}},
		},
	}

	email := convertToEmail(msg, "INBOX", 7)
	assert.Equal(t, "INBOX/7/42", email.ID)
	assert.Equal(t, "INBOX", email.Folder)
	assert.Equal(t, `"Acme Recruiting" <jobs@acme.example>`, email.From)
	assert.Equal(t, "Thanks for applying", email.Subject)
	assert.True(t, email.Date.Equal(date))
	assert.Equal(t, "<abc@acme.example>", email.MessageID)
}

func TestEmailID_StablePerFolder(t *testing.T) {
	assert.Equal(t, "[Gmail]/All Mail/3/9", emailID("[Gmail]/All Mail", 3, 9))
	assert.NotEqual(t, emailID("INBOX", 1, 9), emailID("INBOX", 2, 9))
}
