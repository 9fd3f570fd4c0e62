package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

type QuoterConfig struct {
	URL         string
	HTTPTimeout time.Duration
}

// Quoter fetches a fee quote for a candidate charge. Quotes populate display
// fields of the provider charge schema; callers fall back to
// entity.FallbackFeeQuote on any failure instead of aborting.
type Quoter struct {
	cfg    QuoterConfig
	client *http.Client
}

func NewQuoter(cfg QuoterConfig) *Quoter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Quoter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (q *Quoter) Quote(ctx context.Context, amountCents int64, currency, customer, pan string) (*entity.FeeQuote, error) {
	if q == nil || strings.TrimSpace(q.cfg.URL) == "" {
		return nil, protocolError("fee quote url is not configured")
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatFloat(float64(amountCents)/100, 'f', 2, 64))
	values.Set("processor", "card")
	values.Set("customer", customer)
	values.Set("currency", currency)
	values.Set("cc", pan)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.cfg.URL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, protocolError("build fee quote request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocolError("fee quote request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		USDC    float64 `json:"usdc"`
		Balance float64 `json:"balance"`
		Fee     struct {
			Base    float64 `json:"base"`
			Percent float64 `json:"percent"`
		} `json:"fee"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, protocolError("unparseable fee quote response: %v", err)
	}

	return &entity.FeeQuote{
		USDCRate:    payload.USDC,
		PoolBalance: payload.Balance,
		FeeBase:     payload.Fee.Base,
		FeePercent:  payload.Fee.Percent,
	}, nil
}
