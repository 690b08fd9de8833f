package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/go2relay/internal/adapters/jpeg"
	"github.com/bft-labs/go2relay/internal/app"
	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/pkg/log"
)

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCommander) ExecuteCommand(ctx context.Context, name string) (domain.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	switch name {
	case "stand_up":
		return domain.CommandResult{ResultID: "r1", Success: true, Message: "ok"}, nil
	case "hello":
		return domain.CommandResult{ResultID: "r2", Success: false, Message: "busy", RawStatus: 3104}, nil
	case "sit":
		return domain.CommandResult{ResultID: "r3"}, domain.ErrRequestTimeout
	}
	return domain.CommandResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
}

func (f *fakeCommander) SetMotionMode(ctx context.Context, mode string) (domain.CommandResult, error) {
	switch mode {
	case "normal":
		return domain.CommandResult{ResultID: "m1", Success: true, Message: "ok"}, nil
	case "ai":
		return domain.CommandResult{ResultID: "m2"}, domain.ErrRequestTimeout
	}
	return domain.CommandResult{}, domain.ErrUnknownMode
}

func (f *fakeCommander) Commands() []app.CommandSpec {
	return app.NewCommandTable(nil).Commands()
}

func (f *fakeCommander) KeepaliveActive() bool { return true }

type fakeStatus struct{}

func (fakeStatus) Battery() domain.BatteryState {
	soc := 81.0
	return domain.BatteryState{SOC: &soc, Connected: true}
}

func (fakeStatus) Snapshot() domain.Status {
	soc := 81.0
	return domain.Status{Connected: true, BatterySOC: &soc, HasVideo: true, SessionState: "Connected", FrameSeq: 12}
}

func newTestServer(t *testing.T) (*Server, *fakeCommander) {
	t.Helper()
	cmd := &fakeCommander{}
	frames := app.NewFramePipeline(jpeg.NewEncoder(jpeg.DefaultQuality), log.NewNoopLogger())
	return NewServer(cmd, fakeStatus{}, frames, log.NewNoopLogger()), cmd
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode, out
}

func TestServer_Battery(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/battery", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["soc"] != 81.0 || body["connected"] != true || body["voltage"] != nil {
		t.Errorf("body = %v", body)
	}
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, key := range []string{"connected", "battery_soc", "has_video", "session_state", "keepalive_active", "frame_seq"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in %v", key, body)
		}
	}
	if body["frame_seq"] != 12.0 {
		t.Errorf("frame_seq = %v", body["frame_seq"])
	}
}

func TestServer_Command(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantSuccess interface{}
		wantMessage interface{}
	}{
		{"success", `{"command":"stand_up"}`, http.StatusOK, true, "ok"},
		{"rejected", `{"command":"hello"}`, http.StatusOK, false, "busy"},
		{"timeout", `{"command":"sit"}`, http.StatusGatewayTimeout, false, "command timed out"},
		{"unknown", `{"command":"backflip"}`, http.StatusBadRequest, nil, nil},
		{"missing", `{}`, http.StatusBadRequest, nil, nil},
		{"bad json", `{"command":`, http.StatusBadRequest, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			code, body := do(t, s, http.MethodPost, "/command", tt.body)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %v)", code, tt.wantCode, body)
			}
			if tt.wantSuccess == nil {
				if _, ok := body["error"]; !ok {
					t.Errorf("error response missing error field: %v", body)
				}
				return
			}
			if body["success"] != tt.wantSuccess || body["message"] != tt.wantMessage {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestServer_UnknownCommandListsAvailable(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := do(t, s, http.MethodPost, "/command", `{"command":"backflip"}`)
	available, ok := body["available"].([]interface{})
	if !ok || len(available) == 0 {
		t.Fatalf("available = %v", body["available"])
	}
}

func TestServer_MotionMode(t *testing.T) {
	s, _ := newTestServer(t)

	if code, body := do(t, s, http.MethodPost, "/motion_mode", `{"mode":"normal"}`); code != http.StatusOK || body["success"] != true {
		t.Errorf("normal: %d %v", code, body)
	}
	if code, _ := do(t, s, http.MethodPost, "/motion_mode", `{"mode":"ai"}`); code != http.StatusGatewayTimeout {
		t.Errorf("ai: status = %d, want 504", code)
	}
	if code, _ := do(t, s, http.MethodPost, "/motion_mode", `{"mode":"sport"}`); code != http.StatusBadRequest {
		t.Errorf("sport: status = %d, want 400", code)
	}
}

func TestServer_CommandsAndKeepalive(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := do(t, s, http.MethodGet, "/commands", "")
	cmds, ok := body["commands"].([]interface{})
	if !ok || len(cmds) != len(app.NewCommandTable(nil).Commands()) {
		t.Errorf("commands = %v", body["commands"])
	}

	_, body = do(t, s, http.MethodGet, "/keepalive", "")
	if body["active"] != true {
		t.Errorf("keepalive = %v", body)
	}
}

func TestServer_VideoFeedHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	close(s.done)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), -1)
	if err != nil {
		t.Fatalf("GET /video_feed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestWriteStream(t *testing.T) {
	frames := [][]byte{[]byte("one"), nil, nil, []byte("two")}
	done := make(chan struct{})
	i := 0
	next := func() ([]byte, bool) {
		if i >= len(frames) {
			close(done)
			return nil, false
		}
		f := frames[i]
		i++
		return f, f != nil
	}

	var buf bytes.Buffer
	if err := writeStream(bufio.NewWriter(&buf), next, "image/jpeg", time.Millisecond, time.Hour, done); err != nil {
		t.Fatalf("writeStream: %v", err)
	}

	want := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\none\r\n" +
		"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\ntwo\r\n"
	if got := buf.String(); got != want {
		t.Errorf("stream = %q, want %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteStream_ClientGone(t *testing.T) {
	next := func() ([]byte, bool) { return []byte("x"), true }
	err := writeStream(bufio.NewWriter(failingWriter{}), next, "image/jpeg", time.Millisecond, time.Hour, make(chan struct{}))
	if err == nil {
		t.Fatal("writeStream should return the write error")
	}
}

func TestWriteStream_HeartbeatRepeatsLastFrame(t *testing.T) {
	done := make(chan struct{})
	calls := 0
	next := func() ([]byte, bool) {
		calls++
		switch {
		case calls == 1:
			return []byte("one"), true
		case calls >= 30:
			close(done)
		}
		return nil, false
	}

	var buf bytes.Buffer
	if err := writeStream(bufio.NewWriter(&buf), next, "image/jpeg", time.Millisecond, 5*time.Millisecond, done); err != nil {
		t.Fatalf("writeStream: %v", err)
	}

	part := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\none\r\n"
	if n := strings.Count(buf.String(), part); n < 2 {
		t.Errorf("stream repeated the last part %d times, want at least 2 parts: %q", n, buf.String())
	}
}

func TestWriteStream_IdleClientGone(t *testing.T) {
	next := func() ([]byte, bool) { return nil, false }

	errc := make(chan error, 1)
	go func() {
		errc <- writeStream(bufio.NewWriter(failingWriter{}), next, "image/jpeg", time.Millisecond, 10*time.Millisecond, make(chan struct{}))
	}()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("writeStream should return the write error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle stream never noticed the client went away")
	}
}
