package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialCoach(t *testing.T, h http.Handler) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(withTestIdentity("anon_ws", "tab-9")(h))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, frame wsFrame) wsReply {
	t.Helper()
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.Fatalf("write %s: %v", frame.Type, err)
	}
	var reply wsReply
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read %s reply: %v", frame.Type, err)
	}
	return reply
}

func TestWebSocket_TurnSummaryReset(t *testing.T) {
	svc, _ := newTestService(&scriptedCompleter{}, ServiceConfig{})
	conn, ctx := dialCoach(t, NewWebSocketHandler(svc, nil, []string{"*"}, true))

	reply := roundTrip(t, ctx, conn, wsFrame{Type: "message", Content: "I am preparing for my driving test on Monday"})
	if reply.Type != "reply" || reply.Reply == nil || reply.Reply.ConfidenceLevel != 8 {
		t.Fatalf("reply = %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, wsFrame{Type: "summary"})
	if reply.Type != "summary" || reply.Summary == nil || reply.Summary.TotalMessages != 2 {
		t.Fatalf("summary = %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, wsFrame{Type: "reset"})
	if reply.Type != "reset" || reply.Summary == nil || reply.Summary.TotalMessages != 0 {
		t.Fatalf("reset = %+v", reply)
	}

	reply = roundTrip(t, ctx, conn, wsFrame{Type: "boosters"})
	if reply.Type != "boosters" || len(reply.Boosters) == 0 {
		t.Fatalf("boosters = %+v", reply)
	}
}

func TestWebSocket_ErrorFrames(t *testing.T) {
	limiterCtx, stop := context.WithCancel(context.Background())
	defer stop()

	svc, _ := newTestService(&scriptedCompleter{}, ServiceConfig{})
	h := NewWebSocketHandler(svc, NewRateLimiter(limiterCtx, 1, time.Minute), []string{"*"}, true)
	conn, ctx := dialCoach(t, h)

	if reply := roundTrip(t, ctx, conn, wsFrame{Type: "message", Content: "  "}); reply.Type != "error" || !strings.Contains(reply.Error, "empty") {
		t.Fatalf("empty message reply = %+v", reply)
	}
	if reply := roundTrip(t, ctx, conn, wsFrame{Type: "message", Content: "this one is over the limit already"}); reply.Error != "rate limit exceeded" {
		t.Fatalf("rate limited reply = %+v", reply)
	}
	if reply := roundTrip(t, ctx, conn, wsFrame{Type: "dance"}); reply.Error != "unknown frame type" {
		t.Fatalf("unknown frame reply = %+v", reply)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	var reply wsReply
	if err := wsjson.Read(ctx, conn, &reply); err != nil || reply.Error != "invalid frame" {
		t.Fatalf("invalid frame reply = %+v, err = %v", reply, err)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	svc, _ := newTestService(&scriptedCompleter{}, ServiceConfig{})
	h := NewWebSocketHandler(svc, nil, []string{"https://coach.example"}, false)

	req := httptest.NewRequest(http.MethodGet, "/ws/coach", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
