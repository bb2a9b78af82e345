package order

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	// ErrOrderRejected is terminal. The exchange refused the order and
	// resending it would only be refused again.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderTimedOut means every attempt ran out of time. The order may
	// or may not exist on the exchange; the ClientID lets a later resend
	// or reconciliation resolve it safely.
	ErrOrderTimedOut = errors.New("order timed out")
)

// SubmitConfig controls order submission.
type SubmitConfig struct {
	// Endpoint is the trading endpoint orders are POSTed to.
	Endpoint string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is the number of resends after the first attempt.
	MaxRetries int
}

func (c SubmitConfig) withDefaults() SubmitConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Validate reports the first configuration problem found.
func (c SubmitConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("invalid submit config: empty endpoint")
	}
	return nil
}

// Response is the exchange's answer to a placed order.
type Response struct {
	OrderID  int64  `json:"orderId"`
	ClientID string `json:"clientOrderId"`
	Symbol   string `json:"symbol"`
	Status   string `json:"status"`
}

// Submitter places signed orders over HTTP. A timed-out attempt is resent
// with the identical payload, same ClientID, same signature, so the
// exchange either deduplicates or places it exactly once.
type Submitter struct {
	cfg    SubmitConfig
	signer *Signer
	client *http.Client
}

// NewSubmitter creates a submitter. client may be nil for a default.
func NewSubmitter(cfg SubmitConfig, signer *Signer, client *http.Client) (*Submitter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("invalid submit config: nil signer")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Submitter{cfg: cfg, signer: signer, client: client}, nil
}

// Place submits the order, retrying timeouts up to MaxRetries. Every
// resend carries the identical bytes. Rejections are never retried.
func (s *Submitter) Place(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	payload := []byte(s.signer.SignedQuery(req))

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		if attempt > 0 {
			logs.Infof("resending order %s (attempt %d)", req.ClientID, attempt+1)
		}

		resp, terminal, err := s.attempt(ctx, payload)
		if err == nil {
			return resp, nil
		}
		if terminal {
			return Response{}, err
		}
		lastErr = err
	}
	return Response{}, fmt.Errorf("%w: %v", ErrOrderTimedOut, lastErr)
}

func (s *Submitter) attempt(ctx context.Context, payload []byte) (resp Response, terminal bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, true, err
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := s.client.Do(r)
	if err != nil {
		// Timeouts and transport failures leave the order in doubt; the
		// idempotent resend resolves it.
		return Response{}, false, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return Response{}, true, fmt.Errorf("%w: http %d: %s", ErrOrderRejected, httpResp.StatusCode, body)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, false, fmt.Errorf("http %d", httpResp.StatusCode)
	}

	if err := sonic.ConfigFastest.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, false, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "REJECTED" {
		return Response{}, true, fmt.Errorf("%w: status REJECTED", ErrOrderRejected)
	}
	return resp, false, nil
}
