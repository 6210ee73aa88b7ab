package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Confidence Level: 7"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "gpt-test")
	text, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Confidence Level: 7", text)
	assert.Equal(t, "gpt-test", got["model"])
	assert.Nil(t, got["response_format"])
	assert.Equal(t, "openai:gpt-test", c.Name())

	_, err = c.CompleteJSON(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, func(t *testing.T, err error) {
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.True(t, se.Temporary())
			assert.False(t, IsPermanent(err))
		}},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, func(t *testing.T, err error) {
			assert.True(t, IsPermanent(err))
		}},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrEmptyCompletion)
		}},
		{"not json", http.StatusOK, `<html>`, func(t *testing.T, err error) {
			assert.ErrorContains(t, err, "invalid json")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAIClient(srv.URL+"/v1/", "", "m").Complete(context.Background(), "p")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, DefaultOpenAIBaseURL, normalizeBaseURL(" "))
	assert.Equal(t, "http://localhost:11434/v1", normalizeBaseURL("localhost:11434"))
	assert.Equal(t, "https://llm.example/v1", normalizeBaseURL("https://llm.example/v1/"))
}
