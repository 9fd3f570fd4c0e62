package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

const (
	chargePath       = "/charge"
	authenticatePath = "/authenticate"
	verifyPath       = "/verify"
	settlePath       = "/settle"
)

type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client talks to the four flow endpoints of the 3DS provider. All calls
// POST a JSON-serialized payload with a form-encoded content type, which is
// a quirk of the provider that must be preserved.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// ChargePayload is the flat object every provider endpoint accepts. The
// "undefined" key is part of the provider schema.
type ChargePayload struct {
	Customer           string
	CountryCode        string
	Product            string
	ProductDescription string

	PAN        string
	CVV        string
	ExpMonth   string
	ExpYear    string
	Cardholder string
	Address    string
	City       string
	Zip        string
	Country    string

	AmountCents int64
	Currency    string

	USDCRate    float64
	PoolBalance float64
}

func (p ChargePayload) fields() map[string]interface{} {
	return map[string]interface{}{
		"customer":           p.Customer,
		"co":                 p.CountryCode,
		"product":            p.Product,
		"productdescription": p.ProductDescription,
		"cc":                 p.PAN,
		"cvv":                p.CVV,
		"expmo":              p.ExpMonth,
		"expyr":              p.ExpYear,
		"cardholder":         p.Cardholder,
		"address":            p.Address,
		"city":               p.City,
		"zip":                p.Zip,
		"country":            p.Country,
		"amount":             strconv.FormatFloat(float64(p.AmountCents)/100, 'f', 2, 64),
		"currency":           p.Currency,
		"usdc":               p.USDCRate,
		"pool":               p.PoolBalance,
		"undefined":          "",
	}
}

type InitiationKind int

const (
	InitiationDdc InitiationKind = iota + 1
	InitiationChallenge
	InitiationUnrecognized
)

// InitiationResult is the classified first-charge response. Unrecognized is
// deliberately not a success: the caller reports it as a terminal failure.
type InitiationResult struct {
	Kind      InitiationKind
	Ddc       *entity.DDCDescriptor
	Challenge *entity.ChallengeDescriptor
	RawBody   string
}

// Charge submits the first charge attempt and classifies the response.
// First match wins: DDC descriptor with an initialized outcome, then any
// legacy challenge marker, then unrecognized.
func (c *Client) Charge(ctx context.Context, payload ChargePayload) (*InitiationResult, error) {
	body, err := c.post(ctx, chargePath, payload.fields())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Outcome              string `json:"outcome"`
		Status               string `json:"status"`
		TransactionReference string `json:"transactionReference"`
		RedirectURL          string `json:"redirect_url"`
		Iframe               *struct {
			URL string `json:"url"`
			JWT string `json:"jwt"`
			MD  string `json:"md"`
		} `json:"iframe"`
		Challenge *struct {
			URL string `json:"url"`
			JWT string `json:"jwt"`
			MD  string `json:"md"`
		} `json:"challenge"`
		DeviceDataCollection *struct {
			URL string `json:"url"`
			JWT string `json:"jwt"`
			Bin string `json:"bin"`
		} `json:"deviceDataCollection"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, protocolError("unparseable charge response: %v", err)
	}

	if resp.DeviceDataCollection != nil && resp.Outcome == "initialized" {
		return &InitiationResult{
			Kind: InitiationDdc,
			Ddc: &entity.DDCDescriptor{
				URL:                  resp.DeviceDataCollection.URL,
				JWT:                  resp.DeviceDataCollection.JWT,
				Bin:                  resp.DeviceDataCollection.Bin,
				TransactionReference: resp.TransactionReference,
			},
		}, nil
	}

	challenge := resp.Challenge
	if challenge == nil {
		challenge = resp.Iframe
	}
	if challenge != nil || resp.RedirectURL != "" || resp.Status == "3ds_required" {
		descriptor := &entity.ChallengeDescriptor{URL: resp.RedirectURL}
		if challenge != nil {
			descriptor = &entity.ChallengeDescriptor{URL: challenge.URL, JWT: challenge.JWT, MD: challenge.MD}
		}
		return &InitiationResult{Kind: InitiationChallenge, Challenge: descriptor}, nil
	}

	return &InitiationResult{Kind: InitiationUnrecognized, RawBody: string(body)}, nil
}

// AuthResult carries the challenge descriptor issued by the auth step plus
// the fresh reference token that supersedes the attempt refid when present.
type AuthResult struct {
	Challenge *entity.ChallengeDescriptor
	Reference string
}

// Authenticate submits the session reference and payment data. Any provider
// error is a terminal decline; a response with neither challenge data nor an
// error is a defect, never a success.
func (c *Client) Authenticate(ctx context.Context, payload ChargePayload, colref, refid string) (*AuthResult, error) {
	fields := payload.fields()
	fields["colref"] = colref
	fields["refid"] = refid

	body, err := c.post(ctx, authenticatePath, fields)
	if err != nil {
		return nil, err
	}

	var resp struct {
		URL       string `json:"url"`
		JWT       string `json:"jwt"`
		MD        string `json:"md"`
		Reference string `json:"reference"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, protocolError("unparseable authentication response: %v", err)
	}

	if resp.URL != "" && resp.JWT != "" {
		return &AuthResult{
			Challenge: &entity.ChallengeDescriptor{URL: resp.URL, JWT: resp.JWT, MD: resp.MD},
			Reference: resp.Reference,
		}, nil
	}
	if resp.Error != "" {
		return nil, &FlowError{Kind: ErrorKindDecline, Reason: resp.Error}
	}

	return nil, &FlowError{Kind: ErrorKindDefect, Reason: "unexpected authentication response: " + string(body)}
}

// Verify re-validates a completed challenge. The provider must answer with
// outcome "authenticated" and an authentication payload; anything else is
// terminal, with the raw outcome kept for diagnosis.
func (c *Client) Verify(ctx context.Context, customer, refid, challengeref string) (json.RawMessage, error) {
	fields := map[string]interface{}{
		"customer":     customer,
		"refid":        refid,
		"challengeref": challengeref,
	}

	body, err := c.post(ctx, verifyPath, fields)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Outcome        string          `json:"outcome"`
		Authentication json.RawMessage `json:"authentication"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, protocolError("unparseable verify response: %s", string(body))
	}

	if resp.Outcome != "authenticated" {
		return nil, &FlowError{
			Kind:   ErrorKindDecline,
			Reason: fmt.Sprintf("verification outcome %q: %s", resp.Outcome, string(body)),
		}
	}
	if len(resp.Authentication) == 0 || string(resp.Authentication) == "null" {
		return nil, protocolError("verify response missing authentication payload: %s", string(body))
	}

	return resp.Authentication, nil
}

// Settle resubmits the full charge payload with the verified authentication
// data. Success requires a non-empty order field even on HTTP 200.
func (c *Client) Settle(ctx context.Context, payload ChargePayload, auth json.RawMessage, refid, challengeref string) (string, error) {
	fields := payload.fields()
	fields["auth3ds"] = auth
	fields["refid"] = refid
	fields["challengeref"] = challengeref

	body, err := c.post(ctx, settlePath, fields)
	if err != nil {
		return "", err
	}

	var resp struct {
		Order string `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", protocolError("unparseable settlement response: %v", err)
	}
	if strings.TrimSpace(resp.Order) == "" {
		return "", &FlowError{Kind: ErrorKindDefect, Reason: "settlement response missing order: " + string(body)}
	}

	return strings.TrimSpace(resp.Order), nil
}

func (c *Client) post(ctx context.Context, path string, fields map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, protocolError("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return nil, protocolError("build request: %v", err)
	}
	// Provider quirk: the body is JSON text but the endpoint only accepts
	// a form-encoded content type.
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocolError("provider request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
