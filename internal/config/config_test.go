package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("mailbox:\n  email: Someone@Gmail.com\n"))
	require.NoError(t, err)

	assert.Equal(t, "someone@gmail.com", cfg.Mailbox.ID)
	assert.Equal(t, "gmail", cfg.Mailbox.Provider)
	assert.Equal(t, "imap.gmail.com:993", cfg.Mailbox.Host)
	assert.Equal(t, []string{"INBOX", "[Gmail]/All Mail"}, cfg.Mailbox.Folders)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.MCP.Endpoint)
	assert.Equal(t, 100, cfg.Fetch.MaxEmails)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "jobtracker.db", cfg.Database.DSN)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RunTimeout)
	require.NotNil(t, cfg.Sync.MinConfidence)
	assert.InDelta(t, 0.6, *cfg.Sync.MinConfidence, 1e-9)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "applications.csv", cfg.Export.File)
}

func TestParse_RequiresEmail(t *testing.T) {
	_, err := Parse([]byte("mailbox:\n  id: x\n"))
	assert.Error(t, err)
}

func TestParse_PostgresNeedsDSN(t *testing.T) {
	_, err := Parse([]byte("mailbox:\n  email: a@b.io\ndatabase:\n  driver: postgres\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("mailbox:\n  email: a@b.io\ndatabase:\n  driver: mysql\n"))
	assert.Error(t, err)
}

func TestParse_RejectsConfidenceAboveOne(t *testing.T) {
	_, err := Parse([]byte("mailbox:\n  email: a@b.io\nsync:\n  min_confidence: 1.5\n"))
	assert.Error(t, err)
}

func TestParse_ExplicitZeroConfidenceKept(t *testing.T) {
	cfg, err := Parse([]byte("mailbox:\n  email: a@b.io\nsync:\n  min_confidence: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Sync.MinConfidence)
	assert.Zero(t, *cfg.Sync.MinConfidence)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("JOBSYNC_TEST_TOKEN", "secret-token")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "mailbox:\n  email: me@example.com\n  access_token: ${JOBSYNC_TEST_TOKEN}\n  refresh_token: ${JOBSYNC_MISSING}\nsync:\n  interval: 2m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Mailbox.AccessToken)
	assert.Equal(t, "${JOBSYNC_MISSING}", cfg.Mailbox.RefreshToken)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "custom", cfg.Mailbox.Provider)
	assert.Equal(t, "", cfg.Mailbox.Host)
}

func TestInferIMAPHost(t *testing.T) {
	assert.Equal(t, "outlook.office365.com:993", InferIMAPHost("x@hotmail.com"))
	assert.Equal(t, "imap.qq.com:993", InferIMAPHost("x@QQ.com"))
	assert.Equal(t, "", InferIMAPHost("x@corp.example"))
}

func TestParseDateLoose(t *testing.T) {
	def := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseDateLoose("", def))
	assert.Equal(t, def, ParseDateLoose("not a date", def))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ParseDateLoose("2024-03-05", def))
}

func TestParse_ValidatesFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad email", "mailbox:\n  email: not-an-address\n"},
		{"bad endpoint", "mailbox:\n  email: a@b.io\nmcp:\n  endpoint: \"::nope\"\n"},
		{"bad log format", "mailbox:\n  email: a@b.io\nlog:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}
