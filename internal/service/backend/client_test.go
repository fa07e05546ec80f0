package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/model"
)

var jpeg = EncoderFunc(func(model.Frame) ([]byte, error) {
	return []byte("\xff\xd8jpeg\xff\xd9"), nil
})

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(config.BackendConfig{
		URL:             srv.URL,
		ServiceRecordID: "sr-42",
		UserAgent:       "station-agent-test",
		PollTimeout:     time.Second,
		PushTimeout:     time.Second,
		CaptureTimeout:  time.Second,
		HealthTimeout:   time.Second,
	}, jpeg, logger.Nop())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func frame() model.Frame {
	return model.Frame{Data: make([]byte, 12), Width: 2, Height: 2}
}

func TestPollActiveDevice(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		wantID int
		wantOK bool
	}{
		{"ok", 200, `{"camera_id": 2}`, 2, true},
		{"zero id", 200, `{"camera_id": 0}`, 0, true},
		{"missing id", 200, `{}`, 0, false},
		{"null id", 200, `{"camera_id": null}`, 0, false},
		{"server error", 500, `{"detail":"boom"}`, 0, false},
		{"not found", 404, `{}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/get-active-camera" || r.Method != http.MethodGet {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				writeJSON(w, tt.status, tt.body)
			}))

			id, ok := c.PollActiveDevice(context.Background())
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("PollActiveDevice() = %d, %v, want %d, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestPollActiveDevice_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer close(release)
	c.cfg.PollTimeout = 50 * time.Millisecond

	start := time.Now()
	if _, ok := c.PollActiveDevice(context.Background()); ok {
		t.Fatal("expected unavailable on timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("poll took %v, timeout not applied", elapsed)
	}
}

func TestPushLiveFrame(t *testing.T) {
	var (
		mu      sync.Mutex
		path    string
		payload string
		agent   string
		reqID   string
	)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		agent = r.Header.Get("User-Agent")
		reqID = r.Header.Get("X-Request-ID")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			writeJSON(w, 400, `{}`)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		payload = header.Filename + ":" + string(data)
		writeJSON(w, 200, `{"success": true, "station": "left"}`)
	}))

	if !c.PushLiveFrame(context.Background(), model.StationLeft, frame()) {
		t.Fatal("PushLiveFrame failed")
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/api/update/left" {
		t.Errorf("unexpected path %q", path)
	}
	if payload != "frame.jpg:\xff\xd8jpeg\xff\xd9" {
		t.Errorf("unexpected payload %q", payload)
	}
	if agent != "station-agent-test" {
		t.Errorf("unexpected user agent %q", agent)
	}
	if reqID == "" {
		t.Error("expected an X-Request-ID header")
	}
}

func TestPushLiveFrame_Failure(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 503, `{}`)
	}))

	if c.PushLiveFrame(context.Background(), model.StationFront, frame()) {
		t.Error("expected failure on 503")
	}
}

func TestPushLiveFrame_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success false", `{"success": false, "station": "front"}`},
		{"no success field", `{"station": "front"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, tt.body)
			}))
			if c.PushLiveFrame(context.Background(), model.StationFront, frame()) {
				t.Error("a push the backend did not accept must report false")
			}
		})
	}
}

func TestSendCapture_FormFields(t *testing.T) {
	tests := []struct {
		name       string
		manual     bool
		upload     bool
		wantManual string
		wantUpload string
	}{
		{"auto", false, true, "false", "true"},
		{"manual", true, true, "true", "true"},
		{"manual no upload", true, false, "true", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form map[string]string
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/analyze-image" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("ParseMultipartForm: %v", err)
				}
				if _, _, err := r.FormFile("file"); err != nil {
					t.Errorf("missing file part: %v", err)
				}
				form = map[string]string{
					"camera_id":         r.FormValue("camera_id"),
					"is_manual":         r.FormValue("is_manual"),
					"should_upload":     r.FormValue("should_upload"),
					"service_record_id": r.FormValue("service_record_id"),
				}
				writeJSON(w, 200, `{"scratch_count": 1}`)
			}))

			if !c.SendCapture(context.Background(), frame(), 3, tt.manual, tt.upload) {
				t.Fatal("SendCapture failed")
			}
			want := map[string]string{
				"camera_id":         "3",
				"is_manual":         tt.wantManual,
				"should_upload":     tt.wantUpload,
				"service_record_id": "sr-42",
			}
			for k, v := range want {
				if form[k] != v {
					t.Errorf("%s = %q, want %q", k, form[k], v)
				}
			}
		})
	}
}

func TestCapture_ErrorCarriesStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 422, `{"detail":"bad image"}`)
	}))

	_, err := c.Capture(context.Background(), frame(), 0, false, true)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("expected status in error, got %v", err)
	}
	if c.SendCapture(context.Background(), frame(), 0, false, true) {
		t.Error("SendCapture should report failure")
	}
}

func TestCapture_SurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, 200, `{}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if !c.SendCapture(ctx, frame(), 1, true, true) {
		t.Error("in-flight capture should complete after the caller is cancelled")
	}
}

func TestSetActiveCamera(t *testing.T) {
	var got string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Method + " " + r.URL.Path
		writeJSON(w, 200, `{"status":"success"}`)
	}))

	if err := c.SetActiveCamera(context.Background(), 2); err != nil {
		t.Fatalf("SetActiveCamera failed: %v", err)
	}
	if got != "POST /api/set-active-camera/2" {
		t.Errorf("unexpected request %q", got)
	}
}

func TestStationFeed(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/station-feed/brake" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		writeJSON(w, 200, `{"image_url":"x","updated_at":"now"}`)
	}))

	feed, err := c.StationFeed(context.Background(), model.StationBrake)
	if err != nil {
		t.Fatalf("StationFeed failed: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(feed, &doc); err != nil {
		t.Fatalf("invalid feed: %v", err)
	}
	if doc["image_url"] != "x" {
		t.Errorf("unexpected feed %v", doc)
	}
}

func TestHealth(t *testing.T) {
	healthy := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status":"online"}`)
	}))
	health, err := healthy.Health(context.Background())
	if err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
	if health.Status != "online" {
		t.Errorf("status = %q, want online", health.Status)
	}

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad gateway", 502, `{}`},
		{"no status", 200, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			if _, err := c.Health(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
