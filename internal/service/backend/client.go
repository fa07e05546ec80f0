// Package backend talks to the remote inspection API. Every call carries its
// own timeout and is never retried. Calls outlive the caller's cancellation so
// a stopping task never aborts a request mid-flight.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"stationagent/internal/config"
	"stationagent/internal/dto"
	"stationagent/internal/logger"
	"stationagent/internal/model"
)

// Encoder turns a frame into upload bytes.
type Encoder interface {
	Encode(frame model.Frame) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(frame model.Frame) ([]byte, error)

func (f EncoderFunc) Encode(frame model.Frame) ([]byte, error) {
	return f(frame)
}

// Client is safe for concurrent use.
type Client struct {
	http    *resty.Client
	cfg     config.BackendConfig
	encoder Encoder
	logger  *logger.Logger
}

// CaptureResult describes an accepted capture.
type CaptureResult struct {
	Bytes int
	Body  json.RawMessage
}

func New(cfg config.BackendConfig, enc Encoder, log *logger.Logger) *Client {
	r := resty.New()
	r.SetBaseURL(cfg.URL)
	r.SetHeader("User-Agent", cfg.UserAgent)
	r.SetHeader("Accept", "application/json")
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})

	return &Client{
		http:    r,
		cfg:     cfg,
		encoder: enc,
		logger:  log,
	}
}

func (c *Client) request(ctx context.Context, timeout time.Duration) (*resty.Request, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	return c.http.R().SetContext(ctx), cancel
}

// PollActiveDevice returns the device id the backend wants open. false means
// no new information: transport error, timeout, non-200 or a missing id.
func (c *Client) PollActiveDevice(ctx context.Context) (int, bool) {
	req, cancel := c.request(ctx, c.cfg.PollTimeout)
	defer cancel()

	resp, err := req.SetResult(&dto.ActiveCameraResponse{}).Get("/api/get-active-camera")
	if err != nil {
		c.logger.Debug("Backend poll failed: %v", err)
		return 0, false
	}
	if resp.StatusCode() != 200 {
		c.logger.Warning("Backend returned status %d for active camera", resp.StatusCode())
		return 0, false
	}

	result, ok := resp.Result().(*dto.ActiveCameraResponse)
	if !ok || result.CameraID == nil {
		return 0, false
	}
	return *result.CameraID, true
}

// PushLiveFrame uploads an annotated frame to the station's live feed. It
// reports true only when the backend answers success.
func (c *Client) PushLiveFrame(ctx context.Context, station model.Station, frame model.Frame) bool {
	data, err := c.encoder.Encode(frame)
	if err != nil {
		c.logger.Debug("Failed to encode live frame for %s: %v", station, err)
		return false
	}

	req, cancel := c.request(ctx, c.cfg.PushTimeout)
	defer cancel()

	resp, err := req.
		SetPathParam("station", string(station)).
		SetFileReader("file", "frame.jpg", bytes.NewReader(data)).
		SetResult(&dto.UpdateResponse{}).
		Post("/api/update/{station}")
	if err != nil {
		c.logger.Debug("Live feed push to %s failed: %v", station, err)
		return false
	}
	if resp.StatusCode() != 200 {
		c.logger.Debug("Live feed push to %s returned status %d", station, resp.StatusCode())
		return false
	}
	result, ok := resp.Result().(*dto.UpdateResponse)
	if !ok || !result.Success {
		c.logger.Debug("Live feed push to %s was not accepted: %s", station, truncate(resp.String(), 200))
		return false
	}
	return true
}

// SendCapture submits a frame for durable analysis and reports success.
func (c *Client) SendCapture(ctx context.Context, frame model.Frame, deviceID int, isManual, shouldUpload bool) bool {
	res, err := c.Capture(ctx, frame, deviceID, isManual, shouldUpload)
	if err != nil {
		c.logger.Error("Capture failed (camera %d, manual=%t): %v", deviceID, isManual, err)
		return false
	}
	c.logger.Info("Capture sent (camera %d, manual=%t, %d bytes)", deviceID, isManual, res.Bytes)
	return true
}

// Capture is SendCapture with the failure reason and response body.
func (c *Client) Capture(ctx context.Context, frame model.Frame, deviceID int, isManual, shouldUpload bool) (CaptureResult, error) {
	data, err := c.encoder.Encode(frame)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("failed to encode capture: %w", err)
	}

	req, cancel := c.request(ctx, c.cfg.CaptureTimeout)
	defer cancel()

	resp, err := req.
		SetFileReader("file", "capture.jpg", bytes.NewReader(data)).
		SetFormData(map[string]string{
			"camera_id":         strconv.Itoa(deviceID),
			"is_manual":         strconv.FormatBool(isManual),
			"should_upload":     strconv.FormatBool(shouldUpload),
			"service_record_id": c.cfg.ServiceRecordID,
		}).
		Post("/api/analyze-image")
	if err != nil {
		return CaptureResult{}, err
	}
	if resp.StatusCode() != 200 {
		return CaptureResult{}, fmt.Errorf("analyze-image returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	return CaptureResult{Bytes: len(data), Body: json.RawMessage(resp.Body())}, nil
}

// SetActiveCamera asks the backend to make id the active device.
func (c *Client) SetActiveCamera(ctx context.Context, id int) error {
	req, cancel := c.request(ctx, c.cfg.PollTimeout)
	defer cancel()

	resp, err := req.
		SetPathParam("id", strconv.Itoa(id)).
		SetResult(&dto.SetActiveCameraResponse{}).
		Post("/api/set-active-camera/{id}")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("set active camera failed: %s", truncate(resp.String(), 200))
	}

	result, ok := resp.Result().(*dto.SetActiveCameraResponse)
	if !ok || result.Status != "success" {
		return errors.New("backend did not confirm the active camera")
	}
	return nil
}

// StationFeed fetches the stored live feed document for a station.
func (c *Client) StationFeed(ctx context.Context, station model.Station) (dto.StationFeed, error) {
	req, cancel := c.request(ctx, c.cfg.PollTimeout)
	defer cancel()

	resp, err := req.
		SetPathParam("station", string(station)).
		Get("/api/station-feed/{station}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("station feed failed: %s", truncate(resp.String(), 200))
	}
	if !json.Valid(resp.Body()) {
		return nil, errors.New("station feed is not valid JSON")
	}
	return dto.StationFeed(resp.Body()), nil
}

// Health checks GET /api/health and returns the reported status.
func (c *Client) Health(ctx context.Context) (dto.HealthResponse, error) {
	req, cancel := c.request(ctx, c.cfg.HealthTimeout)
	defer cancel()

	var health dto.HealthResponse
	resp, err := req.SetResult(&health).Get("/api/health")
	if err != nil {
		return dto.HealthResponse{}, err
	}
	if resp.StatusCode() != 200 {
		return dto.HealthResponse{}, fmt.Errorf("backend health returned status %d", resp.StatusCode())
	}
	if health.Status == "" {
		return dto.HealthResponse{}, errors.New("backend health did not report a status")
	}
	return health, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.cfg.URL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
