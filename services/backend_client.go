package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type VoteType string

const (
	VoteVerify VoteType = "verify"
	VoteReject VoteType = "reject"
)

// VoteBackend is the part of the hosted backend the validation flow needs.
type VoteBackend interface {
	CastTrendVote(ctx context.Context, userToken, trendID string, vote VoteType) error
	CheckRateLimit(ctx context.Context, userToken, userID string) (RateLimitState, error)
}

// RemoteProfile is a row of the backend's profiles table.
type RemoteProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	SpotterTier  string    `json:"spotter_tier"`
	ApprovalRate *float64  `json:"approval_rate,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BackendClient talks to the hosted backend's REST/RPC endpoints.
// Writes are attempted once; reads are retried with backoff.
type BackendClient struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax uint64
	Client   *http.Client

	log     zerolog.Logger
	metrics *Metrics
}

func NewBackendClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger, metrics *Metrics) *BackendClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &BackendClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		Timeout:  timeout,
		RetryMax: 2,
		Client:   &http.Client{},
		log:      log,
		metrics:  metrics,
	}
}

type rpcError struct {
	status  int
	message string
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.status, e.message)
}

// CastTrendVote calls rpc/cast_trend_vote.
func (c *BackendClient) CastTrendVote(ctx context.Context, userToken, trendID string, vote VoteType) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body := map[string]interface{}{
		"p_trend_id": trendID,
		"p_vote":     string(vote),
	}
	raw, err := c.post(ctx, "/rest/v1/rpc/cast_trend_vote", userToken, body)
	c.record("cast_trend_vote", err)
	if err != nil {
		return c.mapError("cast_trend_vote", err)
	}

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := decodeFirst(raw, &out); err != nil {
		return fmt.Errorf("%w: decode cast_trend_vote: %v", ErrBackendUnavailable, err)
	}
	if !out.Success {
		return voteFailure(out.Error)
	}
	return nil
}

// CheckRateLimit calls rpc/check_rate_limit. The procedure returns a one-row set.
func (c *BackendClient) CheckRateLimit(ctx context.Context, userToken, userID string) (RateLimitState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var state RateLimitState
	op := func() error {
		raw, err := c.post(ctx, "/rest/v1/rpc/check_rate_limit", userToken, map[string]interface{}{
			"p_user_id": userID,
		})
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := decodeFirst(raw, &state); err != nil {
			return backoff.Permanent(fmt.Errorf("decode check_rate_limit: %w", err))
		}
		return nil
	}

	err := backoff.Retry(op, c.retryPolicy(ctx))
	c.record("check_rate_limit", err)
	if err != nil {
		return RateLimitState{}, c.mapError("check_rate_limit", err)
	}
	return state, nil
}

// FetchProfiles reads profiles changed after since.
func (c *BackendClient) FetchProfiles(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("select", "id,username,spotter_tier,approval_rate,updated_at")
	q.Set("updated_at", "gt."+since.UTC().Format(time.RFC3339))
	q.Set("order", "updated_at.asc")
	endpoint := c.BaseURL + "/rest/v1/profiles?" + q.Encode()

	var profiles []RemoteProfile
	op := func() error {
		raw, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.Unmarshal(raw, &profiles); err != nil {
			return backoff.Permanent(fmt.Errorf("decode profiles: %w", err))
		}
		return nil
	}

	err := backoff.Retry(op, c.retryPolicy(ctx))
	c.record("profiles", err)
	if err != nil {
		return nil, c.mapError("profiles", err)
	}
	return profiles, nil
}

// ValidateToken resolves a user access token to the user id.
func (c *BackendClient) ValidateToken(ctx context.Context, accessToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	raw, err := c.do(ctx, http.MethodGet, c.BaseURL+"/auth/v1/user", accessToken, nil)
	c.record("auth_user", err)
	if err != nil {
		return "", c.mapError("auth_user", err)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return "", ErrUnauthenticated
	}
	return user.ID, nil
}

func (c *BackendClient) post(ctx context.Context, path, userToken string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.BaseURL+path, userToken, jsonData)
}

func (c *BackendClient) do(ctx context.Context, method, endpoint, userToken string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}

	bearer := c.APIKey
	if userToken != "" {
		bearer = userToken
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &rpcError{status: resp.StatusCode, message: errorMessage(respBody)}
	}
	return respBody, nil
}

func (c *BackendClient) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = c.Timeout
	return backoff.WithContext(backoff.WithMaxRetries(eb, c.RetryMax), ctx)
}

func (c *BackendClient) record(rpc string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.BackendCalls.WithLabelValues(rpc, result).Inc()
}

// mapError turns transport and HTTP failures into the package's sentinels.
func (c *BackendClient) mapError(rpc string, err error) error {
	var re *rpcError
	switch {
	case errors.As(err, &re):
		switch {
		case re.status == http.StatusUnauthorized || re.status == http.StatusForbidden:
			return fmt.Errorf("%s: %w", rpc, ErrUnauthenticated)
		case re.status == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", rpc, ErrRateLimitReached)
		case re.status >= 500:
			c.log.Error().Str("rpc", rpc).Int("status", re.status).Str("message", re.message).Msg("[BACKEND] server error")
			return fmt.Errorf("%s: %w: %v", rpc, ErrBackendUnavailable, err)
		case rpc == "cast_trend_vote" || rpc == "check_rate_limit":
			return voteFailure(re.message)
		default:
			return fmt.Errorf("%s: %w", rpc, err)
		}
	default:
		// transport errors, including deadline exceeded
		c.log.Error().Err(err).Str("rpc", rpc).Msg("[BACKEND] call failed")
		return fmt.Errorf("%s: %w: %v", rpc, ErrBackendUnavailable, err)
	}
}

// voteFailure maps a backend rejection message onto a sentinel.
func voteFailure(message string) error {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "already voted"), strings.Contains(msg, "duplicate"):
		return ErrDuplicateVote
	case strings.Contains(msg, "limit"):
		return ErrRateLimitReached
	case strings.Contains(msg, "not authenticated"), strings.Contains(msg, "jwt"):
		return ErrUnauthenticated
	default:
		return fmt.Errorf("%w: %s", ErrVoteRejected, message)
	}
}

func retryable(err error) bool {
	var re *rpcError
	if errors.As(err, &re) {
		return re.status >= 500 || re.status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// decodeFirst decodes either a JSON object or the first element of an array.
func decodeFirst(raw []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("empty result set")
		}
		trimmed = rows[0]
	}
	return json.Unmarshal(trimmed, v)
}
