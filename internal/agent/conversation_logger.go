package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/session"
)

const (
	defaultLogQueueSize = 1000
	globalLogMaxSizeMB  = 50
	globalLogMaxBackups = 5
	globalLogMaxAgeDays = 30
)

var (
	ansiRe        = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)
	unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// ConversationLogConfig controls where transcripts are written.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one NDJSON transcript line.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	ClientID   string         `json:"client_id"`
	SessionID  string         `json:"session_id"`
	LedgerID   string         `json:"ledger_id,omitempty"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events without blocking turns.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	dir     string
	global  *lumberjack.Logger
	queue   chan ConversationLogEvent
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewConversationLogger starts the async transcript writer. When neither the
// per-session nor the global stream is enabled it returns a no-op logger.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultLogQueueSize
	}

	l := &fileConversationLogger{
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create conversation log dir: %w", err)
		}
		l.dir = cfg.Dir
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create global conversation log dir: %w", err)
		}
		l.global = &lumberjack.Logger{
			Filename:   cfg.GlobalPath,
			MaxSize:    globalLogMaxSizeMB,
			MaxBackups: globalLogMaxBackups,
			MaxAge:     globalLogMaxAgeDays,
			Compress:   true,
		}
	}

	go l.run()
	return l, nil
}

// Log enqueues event. When the queue is full the event is dropped.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	defer func() {
		// Log after Close must not panic the caller.
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Close drains the queue and closes the global stream.
func (l *fileConversationLogger) Close() error {
	var err error
	l.once.Do(func() {
		close(l.queue)
		<-l.done
		if l.global != nil {
			err = l.global.Close()
		}
	})
	return err
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if l.dir != "" {
			if err := l.appendSessionLine(event, line); err != nil {
				l.logger.Warn("Failed to write conversation log", "client_id", event.ClientID, "session_id", event.SessionID, "error", err)
			}
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("Failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *fileConversationLogger) appendSessionLine(event ConversationLogEvent, line []byte) error {
	dir := filepath.Join(l.dir, safeSegment(event.ClientID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, safeSegment(event.SessionID)+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	_, werr := f.Write(line)
	return errors.Join(werr, f.Close())
}

// safeSegment keeps a client or session ID usable as a single path element.
func safeSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// cleanForReadability strips terminal escapes and control characters.
func cleanForReadability(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

type channelKey struct{}

// withChannel tags ctx with the transport a turn arrived on.
func withChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if c, ok := ctx.Value(channelKey{}).(string); ok {
		return c
	}
	return "internal"
}

func newLogEvent(ctx context.Context, key session.Key, ledgerID, direction, eventType, content string) ConversationLogEvent {
	meta := map[string]any{}
	if reqID := chiMiddleware.GetReqID(ctx); reqID != "" {
		meta["request_id"] = reqID
	}
	return ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		ClientID:   key.ClientID,
		SessionID:  key.SessionID,
		LedgerID:   ledgerID,
		Channel:    channelFrom(ctx),
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	}
}

func (s *Service) logUserMessage(ctx context.Context, key session.Key, ledgerID, content string, class coach.Classification) {
	event := newLogEvent(ctx, key, ledgerID, "inbound", "coach_user_message", content)
	event.Meta["classification"] = class.String()
	s.log.Log(event)
}

func (s *Service) logAssistantMessage(ctx context.Context, key session.Key, ledgerID string, result *TurnResult) {
	event := newLogEvent(ctx, key, ledgerID, "outbound", "coach_assistant_message", result.Reply.Narrative)
	event.Meta["confidence_level"] = result.Reply.ConfidenceLevel
	event.Meta["emotional_tone"] = string(result.Reply.Tone)
	event.Meta["fallback"] = result.Fallback
	if len(result.Report.Missing) > 0 {
		event.Meta["missing_sections"] = result.Report.Missing
	}
	s.log.Log(event)
}
