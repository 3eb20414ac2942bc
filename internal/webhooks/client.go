package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Mailevents-Signature"
	HeaderTimestamp = "X-Mailevents-Timestamp"
	HeaderTriggerID = "X-Mailevents-Trigger-Id"
)

// Client calls the webhook dispatch service, which owns fan-out to the
// team's registered endpoints.
type Client struct {
	BaseURL       string
	SigningSecret string
	HTTP          *http.Client
}

type triggerRequest struct {
	TeamID  int64        `json:"teamId"`
	Type    string       `json:"type"`
	Payload EmailPayload `json:"payload"`
}

// Trigger posts t to the dispatch service. It returns the HTTP status and
// raw response body alongside any error.
func (c *Client) Trigger(ctx context.Context, t Trigger) (int, []byte, error) {
	body, err := json.Marshal(triggerRequest{TeamID: t.TeamID, Type: string(t.Kind), Payload: t.Payload})
	if err != nil {
		return 0, nil, err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/webhooks/trigger"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTriggerID, t.ID)
	req.Header.Set(HeaderTimestamp, ts)
	if c.SigningSecret != "" {
		req.Header.Set(HeaderSignature, Sign(c.SigningSecret, ts, body))
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, b, errors.New("webhook trigger failed: " + resp.Status)
	}
	return resp.StatusCode, b, nil
}

// Sign computes the hex HMAC-SHA256 of "timestamp.body".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret, timestamp, provided string, body []byte) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(provided))
}

// ShouldRetry decides whether a failed trigger is transient.
func ShouldRetry(err error, httpStatus int) bool {
	if httpStatus == 0 && err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		if errors.As(err, &ne) {
			return true
		}
		return false
	}
	if httpStatus == 429 || httpStatus == 408 {
		return true
	}
	return httpStatus >= 500 && httpStatus <= 599
}

// Backoff returns an exponential delay with full jitter for a 0-based attempt.
func Backoff(attempt int, rng *rand.Rand) time.Duration {
	const (
		base     = 250 * time.Millisecond
		maxDelay = 30 * time.Second
	)
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	delay := base << attempt
	if delay > maxDelay {
		delay = maxDelay
	}
	if rng == nil {
		return time.Duration(rand.Int63n(int64(delay) + 1))
	}
	return time.Duration(rng.Int63n(int64(delay) + 1))
}
