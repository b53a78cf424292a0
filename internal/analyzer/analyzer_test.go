package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YKarmar/jobsync/internal/types"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     types.Classification
	}{
		{
			name:     "plain json",
			response: `{"type":"rejection","company":"Acme","role":"Staff Eng","location":"Remote","confidence":0.95}`,
			want:     types.Classification{Type: types.EmailTypeRejection, Company: "Acme", Role: "Staff Eng", Location: "Remote", Confidence: 0.95},
		},
		{
			name:     "wrapped in prose with string confidence",
			response: "结果如下：\n```json\n{\"type\":\"Interview\",\"company\":\" Globex  Corp \",\"role\":\"unknown\",\"confidence\":\"0.8\"}\n```",
			want:     types.Classification{Type: types.EmailTypeInterviewInvitation, Company: "Globex Corp", Confidence: 0.8},
		},
		{
			name:     "confidence clamped",
			response: `{"type":"offer","company":"Initech","confidence":3}`,
			want:     types.Classification{Type: types.EmailTypeOffer, Company: "Initech", Confidence: 1},
		},
		{
			name:     "unrecognised type",
			response: `{"type":"newsletter","company":"","confidence":0.4}`,
			want:     types.Classification{Type: types.EmailTypeUnknown, Confidence: 0.4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClassification_Invalid(t *testing.T) {
	_, err := ParseClassification("I cannot help with that")
	assert.Error(t, err)

	_, err = ParseClassification(`{"type":"offer","confidence":"high"}`)
	assert.Error(t, err)
}

func TestClassify_CallsChatCompletions(t *testing.T) {
	var got LLMRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"type\":\"application_confirmation\",\"company\":\"Acme\",\"role\":\"Staff Eng\",\"confidence\":0.9}"}}]}`))
	}))
	defer srv.Close()

	ja := NewJobAnalyzer(LLMConfig{APIBase: srv.URL + "/v1/", APIKey: "test-key", Model: "gpt-test", MaxTokens: 100})
	c, err := ja.Classify(context.Background(), "Thanks for applying", "jobs@acme.com", "We received your application")
	require.NoError(t, err)

	assert.Equal(t, types.EmailTypeApplicationConfirmation, c.Type)
	assert.Equal(t, "Acme", c.Company)
	assert.Equal(t, "Staff Eng", c.Role)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 1)
	assert.True(t, strings.Contains(got.Messages[0].Content, "Thanks for applying"))
}

func TestClassify_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ja := NewJobAnalyzer(LLMConfig{APIBase: srv.URL})
	_, err := ja.Classify(context.Background(), "s", "f", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", truncateText("abc", 5))
	assert.Equal(t, "面试...", truncateText("面试邀请", 2))
}
