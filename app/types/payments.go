package types

import (
	"errors"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// CardFields is the transient card payload the caller re-supplies at every
// step. It is never persisted.
type CardFields struct {
	Pan         string `json:"pan"`
	Cvv         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	HolderName  string `json:"holder_name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (c *CardFields) normalize() {
	c.Pan = strings.ReplaceAll(strings.TrimSpace(c.Pan), " ", "")
	c.Cvv = strings.TrimSpace(c.Cvv)
	c.ExpiryMonth = strings.TrimSpace(c.ExpiryMonth)
	c.ExpiryYear = strings.TrimSpace(c.ExpiryYear)
	c.HolderName = strings.TrimSpace(c.HolderName)
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
}

func (c *CardFields) validate() error {
	if !isDigits(c.Pan) || len(c.Pan) < 12 || len(c.Pan) > 19 {
		return errors.New("pan must be 12-19 digits")
	}
	if !isDigits(c.Cvv) || len(c.Cvv) < 3 || len(c.Cvv) > 4 {
		return errors.New("cvv must be 3-4 digits")
	}
	if !validMonth(c.ExpiryMonth) {
		return errors.New("expiry_month must be 01-12")
	}
	if !isDigits(c.ExpiryYear) || (len(c.ExpiryYear) != 2 && len(c.ExpiryYear) != 4) {
		return errors.New("expiry_year must be 2 or 4 digits")
	}
	if c.HolderName == "" {
		return errors.New("holder_name is required")
	}
	if c.AmountCents <= 0 {
		return errors.New("amount_cents must be > 0")
	}
	if len(c.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

// GatewaySettingsPayload is the caller-supplied settings override. It wins
// over stored merchant settings when present.
type GatewaySettingsPayload struct {
	CustomerId         string  `json:"customer_id"`
	CountryCode        string  `json:"country_code"`
	ProductCode        string  `json:"product_code"`
	ProductDescription string  `json:"product_description"`
	CommissionPct      float64 `json:"commission_pct"`
}

type InitiatePaymentRequest struct {
	PaymentId  string `json:"-"`
	MerchantId string `json:"merchant_id"`
	CardFields
	GatewayOverride *GatewaySettingsPayload `json:"gateway_override,omitempty"`
}

func NewInitiatePaymentRequestFromContext(ctx echo.Context) (*InitiatePaymentRequest, error) {
	var body InitiatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentId = strings.TrimSpace(ctx.Param("id"))
	body.MerchantId = strings.TrimSpace(body.MerchantId)
	body.normalize()
	return &body, nil
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.PaymentId == "" {
		return errors.New("payment id is required")
	}
	return r.validate()
}

type DdcWaitRequest struct {
	PaymentId string `json:"-"`
	Refid     string `json:"refid"`
}

func NewDdcWaitRequestFromContext(ctx echo.Context) (*DdcWaitRequest, error) {
	var body DdcWaitRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentId = strings.TrimSpace(ctx.Param("id"))
	body.Refid = strings.TrimSpace(body.Refid)
	return &body, nil
}

func (r *DdcWaitRequest) Validate() error {
	if r.PaymentId == "" {
		return errors.New("payment id is required")
	}
	if r.Refid == "" {
		return errors.New("refid is required")
	}
	return nil
}

type AuthenticatePaymentRequest struct {
	PaymentId  string `json:"-"`
	MerchantId string `json:"merchant_id"`
	CardFields
	Colref          string                  `json:"colref"`
	Refid           string                  `json:"refid"`
	GatewayOverride *GatewaySettingsPayload `json:"gateway_override,omitempty"`
}

func NewAuthenticatePaymentRequestFromContext(ctx echo.Context) (*AuthenticatePaymentRequest, error) {
	var body AuthenticatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentId = strings.TrimSpace(ctx.Param("id"))
	body.MerchantId = strings.TrimSpace(body.MerchantId)
	body.Colref = strings.TrimSpace(body.Colref)
	body.Refid = strings.TrimSpace(body.Refid)
	body.normalize()
	return &body, nil
}

func (r *AuthenticatePaymentRequest) Validate() error {
	if r.PaymentId == "" {
		return errors.New("payment id is required")
	}
	if r.Colref == "" {
		return errors.New("colref is required")
	}
	if r.Refid == "" {
		return errors.New("refid is required")
	}
	return r.validate()
}

type CompletePaymentRequest struct {
	PaymentId  string `json:"-"`
	MerchantId string `json:"merchant_id"`
	CardFields
	Refid           string                  `json:"refid"`
	Challengeref    string                  `json:"challengeref"`
	GatewayOverride *GatewaySettingsPayload `json:"gateway_override,omitempty"`
}

func NewCompletePaymentRequestFromContext(ctx echo.Context) (*CompletePaymentRequest, error) {
	var body CompletePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentId = strings.TrimSpace(ctx.Param("id"))
	body.MerchantId = strings.TrimSpace(body.MerchantId)
	body.Refid = strings.TrimSpace(body.Refid)
	body.Challengeref = strings.TrimSpace(body.Challengeref)
	body.normalize()
	return &body, nil
}

func (r *CompletePaymentRequest) Validate() error {
	if r.PaymentId == "" {
		return errors.New("payment id is required")
	}
	if r.Refid == "" {
		return errors.New("refid is required")
	}
	if r.Challengeref == "" {
		return errors.New("challengeref is required")
	}
	return r.validate()
}

// DdcEventRequest is the browser relay feeding the collector: either a
// session-reference message or frame content for the scanner.
type DdcEventRequest struct {
	Refid   string `json:"refid"`
	Colref  string `json:"colref"`
	Content string `json:"content"`
}

func NewDdcEventRequestFromContext(ctx echo.Context) (*DdcEventRequest, error) {
	var body DdcEventRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Refid = strings.TrimSpace(body.Refid)
	body.Colref = strings.TrimSpace(body.Colref)
	return &body, nil
}

func (r *DdcEventRequest) Validate() error {
	if r.Refid == "" {
		return errors.New("refid is required")
	}
	if r.Colref == "" && r.Content == "" {
		return errors.New("colref or content is required")
	}
	return nil
}

// DdcPageRequest renders the hidden device-data-collection frame.
type DdcPageRequest struct {
	URL   string
	JWT   string
	Bin   string
	Refid string
}

func NewDdcPageRequestFromContext(ctx echo.Context) *DdcPageRequest {
	return &DdcPageRequest{
		URL:   strings.TrimSpace(ctx.QueryParam("url")),
		JWT:   strings.TrimSpace(ctx.QueryParam("jwt")),
		Bin:   strings.TrimSpace(ctx.QueryParam("bin")),
		Refid: strings.TrimSpace(ctx.QueryParam("refid")),
	}
}

func (r *DdcPageRequest) Validate() error {
	if err := validatePostURL(r.URL); err != nil {
		return err
	}
	if r.JWT == "" {
		return errors.New("jwt is required")
	}
	if r.Refid == "" {
		return errors.New("refid is required")
	}
	return nil
}

// ChallengePageRequest renders the interactive bank challenge frame.
type ChallengePageRequest struct {
	URL   string
	JWT   string
	MD    string
	Refid string
}

func NewChallengePageRequestFromContext(ctx echo.Context) *ChallengePageRequest {
	return &ChallengePageRequest{
		URL:   strings.TrimSpace(ctx.QueryParam("url")),
		JWT:   strings.TrimSpace(ctx.QueryParam("jwt")),
		MD:    strings.TrimSpace(ctx.QueryParam("md")),
		Refid: strings.TrimSpace(ctx.QueryParam("refid")),
	}
}

func (r *ChallengePageRequest) Validate() error {
	if err := validatePostURL(r.URL); err != nil {
		return err
	}
	if r.JWT == "" {
		return errors.New("jwt is required")
	}
	return nil
}

type UpsertGatewaySettingsRequest struct {
	MerchantId string `json:"-"`
	GatewaySettingsPayload
}

func NewUpsertGatewaySettingsRequestFromContext(ctx echo.Context) (*UpsertGatewaySettingsRequest, error) {
	var body UpsertGatewaySettingsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.MerchantId = strings.TrimSpace(ctx.Param("id"))
	body.CustomerId = strings.TrimSpace(body.CustomerId)
	body.CountryCode = strings.ToUpper(strings.TrimSpace(body.CountryCode))
	body.ProductCode = strings.TrimSpace(body.ProductCode)
	body.ProductDescription = strings.TrimSpace(body.ProductDescription)
	return &body, nil
}

func (r *UpsertGatewaySettingsRequest) Validate() error {
	if r.MerchantId == "" {
		return errors.New("merchant id is required")
	}
	if r.CustomerId == "" {
		return errors.New("customer_id is required")
	}
	if len(r.CountryCode) != 2 {
		return errors.New("country_code must be 2 letters")
	}
	if r.CommissionPct < 0 || r.CommissionPct > 100 {
		return errors.New("commission_pct must be between 0 and 100")
	}
	return nil
}

// PaymentStepResponse is what every flow endpoint answers with. Success is
// definitive: intermediate steps and declines are success=false, and the
// order field only carries a real settlement id when success is true.
type PaymentStepResponse struct {
	Success     bool             `json:"success"`
	RequiresDdc bool             `json:"requires_ddc,omitempty"`
	Requires3ds bool             `json:"requires_3ds,omitempty"`
	Order       string           `json:"order,omitempty"`
	Message     string           `json:"message,omitempty"`
	DdcParams   *DdcParams       `json:"ddc_params,omitempty"`
	Challenge   *ChallengeParams `json:"challenge,omitempty"`
}

type DdcParams struct {
	URL   string `json:"url"`
	JWT   string `json:"jwt"`
	Bin   string `json:"bin,omitempty"`
	Refid string `json:"refid"`
}

type ChallengeParams struct {
	URL   string `json:"url"`
	JWT   string `json:"jwt,omitempty"`
	MD    string `json:"md,omitempty"`
	Refid string `json:"refid"`
}

type DdcResultResponse struct {
	Colref      string `json:"colref"`
	Refid       string `json:"refid"`
	Synthesized bool   `json:"synthesized"`
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validMonth(s string) bool {
	if len(s) != 2 || !isDigits(s) {
		return false
	}
	return s >= "01" && s <= "12"
}

func validatePostURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New("url must be absolute http(s)")
	}
	return nil
}
