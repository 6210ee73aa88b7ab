package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/confidence-coach/internal/session"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	event := ConversationLogEvent{
		ClientID:   "anon_1",
		SessionID:  "tab-1",
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "coach_user_message",
		ContentRaw: "I feel stuck",
	}
	logger.Log(event)

	path := filepath.Join(dir, "anon_1", "tab-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "I feel stuck" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content == "" || got.Timestamp == "" {
		t.Fatal("expected cleaned content and timestamp to be populated")
	}
}

func TestConversationLoggerGlobalStream(t *testing.T) {
	t.Parallel()

	global := filepath.Join(t.TempDir(), "logs", "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		GlobalEnabled: true,
		GlobalPath:    global,
	}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{ClientID: "anon_2", SessionID: "s", EventType: "session_reset"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Logging after Close is dropped silently.
	logger.Log(ConversationLogEvent{ClientID: "anon_2"})

	data, err := os.ReadFile(global)
	if err != nil {
		t.Fatalf("read global log: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"session_reset"`) {
		t.Fatalf("global log = %s", data)
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	logger, err := NewConversationLogger(ConversationLogConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := logger.(noopConversationLogger); !ok {
		t.Fatalf("logger = %T, want noop", logger)
	}
}

func TestServiceLogsTurns(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(session.NewRegistry(time.Hour, nil), &scriptedCompleter{}, nil, logger, ServiceConfig{})

	key := session.Key{ClientID: "anon_log", SessionID: "tab-3"}
	if _, err := svc.SubmitTurn(withChannel(context.Background(), "chat_ws"), key, "I passed my exam after failing it twice"); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "anon_log", "tab-3.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), data)
	}
	var assistant ConversationLogEvent
	if err := json.Unmarshal([]byte(lines[1]), &assistant); err != nil {
		t.Fatal(err)
	}
	if assistant.EventType != "coach_assistant_message" || assistant.Channel != "chat_ws" || assistant.Content != "Great job!" {
		t.Fatalf("assistant event = %+v", assistant)
	}
	if assistant.Meta["confidence_level"] != float64(8) {
		t.Fatalf("meta = %v", assistant.Meta)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain\x07"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") || strings.Contains(clean, "\x07") {
		t.Fatalf("expected control sequences to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "error plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func TestSafeSegment(t *testing.T) {
	for in, want := range map[string]string{"anon_abc": "anon_abc", "../etc": ".._etc", "..": "unknown", "": "unknown", "a/b": "a_b"} {
		if got := safeSegment(in); got != want {
			t.Errorf("safeSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
