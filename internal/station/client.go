package station

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"EventGate/internal/model"
	"EventGate/internal/model/dto"
	errs "EventGate/pkg/errors"
)

// Client 扫码站到服务端的 HTTP 客户端。
// token 过期时用 refresh token 自动换新
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// TransportError 传输层失败（超时、连接拒绝、5xx），区别于业务拒绝。
// 提交链路据此判定离线
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type successEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Authenticate 用预共享密钥换取 token 对
func (c *Client) Authenticate(ctx context.Context, stationKey, deviceID string) error {
	var pair dto.TokenPairResponse
	err := c.post(ctx, "/v1/auth/station/exchange", dto.StationExchangeRequest{
		StationKey: stationKey,
		DeviceID:   deviceID,
	}, &pair, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()

	return nil
}

// SubmitCheckIn 提交一次签到并返回服务端判定。
// 业务拒绝（not_found / ineligible / invalid）以 Definition 错误返回，
// 传输失败以 TransportError 返回
func (c *Client) SubmitCheckIn(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
	var resp dto.SubmitCheckInResponse
	err := c.post(ctx, "/v1/check-ins/submit", dto.SubmitCheckInRequest{
		AttemptID:       attempt.AttemptID,
		EventID:         attempt.EventID,
		AttendeeRef:     attempt.AttendeeRef,
		Method:          string(attempt.Method),
		ClientTimestamp: attempt.ClientTimestamp,
	}, &resp, true)
	if err != nil {
		return model.Outcome{}, err
	}

	outcome := model.Outcome{
		Status:     model.OutcomeStatus(resp.Status),
		AttendeeID: resp.AttendeeID,
	}
	if resp.CheckIn != nil {
		outcome.CheckIn = &model.CheckInRecord{
			Time:     resp.CheckIn.Time,
			Method:   model.CheckInMethod(resp.CheckIn.Method),
			DeviceID: resp.CheckIn.DeviceID,
		}
	}
	return outcome, nil
}

// SearchAttendees 人工兜底检索
func (c *Client) SearchAttendees(ctx context.Context, eventID int64, query string) (*dto.SearchAttendeesResponse, error) {
	endpoint := fmt.Sprintf("/v1/attendees/search?event_id=%d&q=%s", eventID, url.QueryEscape(query))

	var resp dto.SearchAttendeesResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}, withAuth bool) error {
	return c.do(ctx, http.MethodPost, path, body, out, withAuth)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, withAuth bool) error {
	err := c.doOnce(ctx, method, path, body, out, withAuth)

	// access token 过期时刷新一次再重试
	if err == errs.Unauthorized && withAuth {
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			return err
		}
		return c.doOnce(ctx, method, path, body, out, withAuth)
	}

	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}, withAuth bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransportError{Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope errorEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Code == "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(payload))
		}
		return errs.Get(envelope.Error.Code)
	}

	if out == nil {
		return nil
	}

	var envelope successEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return errs.Unauthorized
	}

	var pair dto.TokenPairResponse
	err := c.doOnce(ctx, http.MethodPost, "/v1/auth/token/refresh",
		dto.RefreshTokenRequest{RefreshToken: refreshToken}, &pair, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()

	return nil
}
