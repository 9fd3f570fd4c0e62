package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/service"
	"github.com/vibast-solutions/ms-go-3ds-gateway/config"
)

type controllerGateway struct {
	chargeFn       func(ctx context.Context, payload provider.ChargePayload) (*provider.InitiationResult, error)
	authenticateFn func(ctx context.Context, payload provider.ChargePayload, colref, refid string) (*provider.AuthResult, error)
	verifyFn       func(ctx context.Context, customer, refid, challengeref string) (json.RawMessage, error)
	settleFn       func(ctx context.Context, payload provider.ChargePayload, auth json.RawMessage, refid, challengeref string) (string, error)
}

func (g *controllerGateway) Charge(ctx context.Context, payload provider.ChargePayload) (*provider.InitiationResult, error) {
	if g.chargeFn != nil {
		return g.chargeFn(ctx, payload)
	}
	return &provider.InitiationResult{Kind: provider.InitiationUnrecognized}, nil
}

func (g *controllerGateway) Authenticate(ctx context.Context, payload provider.ChargePayload, colref, refid string) (*provider.AuthResult, error) {
	if g.authenticateFn != nil {
		return g.authenticateFn(ctx, payload, colref, refid)
	}
	return nil, &provider.FlowError{Kind: provider.ErrorKindDefect, Reason: "unexpected"}
}

func (g *controllerGateway) Verify(ctx context.Context, customer, refid, challengeref string) (json.RawMessage, error) {
	if g.verifyFn != nil {
		return g.verifyFn(ctx, customer, refid, challengeref)
	}
	return nil, &provider.FlowError{Kind: provider.ErrorKindDecline, Reason: "not authenticated"}
}

func (g *controllerGateway) Settle(ctx context.Context, payload provider.ChargePayload, auth json.RawMessage, refid, challengeref string) (string, error) {
	if g.settleFn != nil {
		return g.settleFn(ctx, payload, auth, refid, challengeref)
	}
	return "", &provider.FlowError{Kind: provider.ErrorKindDefect, Reason: "missing order"}
}

type controllerSettingsRepo struct{}

func (controllerSettingsRepo) FindByMerchantID(context.Context, string) (*entity.GatewaySettings, error) {
	return nil, nil
}

func (controllerSettingsRepo) Upsert(context.Context, string, *entity.GatewaySettings) error {
	return nil
}

func newTestController(gateway *controllerGateway) *PaymentController {
	svc := service.NewPaymentService(
		controllerSettingsRepo{},
		nil,
		nil,
		gateway,
		service.NewDDCCollector(config.DDCConfig{Deadline: 50 * time.Millisecond, ScanInterval: 10 * time.Millisecond}),
		config.GatewayDefaultsConfig{CustomerID: "default"},
		config.SystemOfRecordConfig{},
	)
	return NewPaymentController(svc)
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, path, body string, paramNames, paramValues []string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames(paramNames...)
	ctx.SetParamValues(paramValues...)

	if err := handler(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
	}
	return rec, decoded
}

const validCardBody = `"pan":"4000000000001091","cvv":"123","expiry_month":"12","expiry_year":"2030","holder_name":"Jane Doe","amount_cents":10000,"currency":"EUR"`

// An initialized DDC descriptor comes back over HTTP as requires_ddc with
// the browser parameters.
func TestInitiatePaymentReturnsDdcParams(t *testing.T) {
	gateway := &controllerGateway{
		chargeFn: func(_ context.Context, _ provider.ChargePayload) (*provider.InitiationResult, error) {
			return &provider.InitiationResult{
				Kind: provider.InitiationDdc,
				Ddc: &entity.DDCDescriptor{
					URL:                  "https://ddc.example.com",
					JWT:                  "jwt-1",
					Bin:                  "400000",
					TransactionReference: "tx-1",
				},
			}, nil
		},
	}
	controller := newTestController(gateway)

	rec, body := doJSON(t, controller.InitiatePayment, "POST", "/payments/pay-1/initiate",
		`{`+validCardBody+`}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != false || body["requires_ddc"] != true {
		t.Fatalf("expected requires_ddc response, got %v", body)
	}
	params, ok := body["ddc_params"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected ddc_params, got %v", body)
	}
	for _, key := range []string{"url", "jwt", "bin", "refid"} {
		if params[key] == "" || params[key] == nil {
			t.Fatalf("expected ddc_params.%s, got %v", key, params)
		}
	}
	order, _ := body["order"].(string)
	if !entity.IsPlaceholderOrderID(order) {
		t.Fatalf("intermediate order label must be a placeholder, got %q", order)
	}
}

func TestInitiatePaymentRejectsMalformedInput(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	rec, body := doJSON(t, controller.InitiatePayment, "POST", "/payments/pay-1/initiate",
		`{"pan":"1234"}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] == nil {
		t.Fatalf("expected error body, got %v", body)
	}
}

func TestInitiatePaymentTransportErrorIs500(t *testing.T) {
	gateway := &controllerGateway{
		chargeFn: func(_ context.Context, _ provider.ChargePayload) (*provider.InitiationResult, error) {
			return nil, &provider.FlowError{Kind: provider.ErrorKindTransport, Reason: "connect timeout"}
		},
	}
	controller := newTestController(gateway)

	rec, _ := doJSON(t, controller.InitiatePayment, "POST", "/payments/pay-1/initiate",
		`{`+validCardBody+`}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for transport error, got %d", rec.Code)
	}
}

func TestAuthenticatePaymentDeclineIs200WithFailure(t *testing.T) {
	gateway := &controllerGateway{
		authenticateFn: func(_ context.Context, _ provider.ChargePayload, _, _ string) (*provider.AuthResult, error) {
			return nil, &provider.FlowError{Kind: provider.ErrorKindDecline, Reason: "3dsecure authentication unavailable"}
		},
	}
	controller := newTestController(gateway)

	rec, body := doJSON(t, controller.AuthenticatePayment, "POST", "/payments/pay-1/authenticate",
		`{`+validCardBody+`,"colref":"colref-1","refid":"refid-1"}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "3dsecure authentication unavailable") {
		t.Fatalf("expected provider reason in message, got %v", body)
	}
	if body["order"] != nil {
		t.Fatalf("decline must carry no order, got %v", body["order"])
	}
}

func TestCompletePaymentSettlement(t *testing.T) {
	gateway := &controllerGateway{
		verifyFn: func(_ context.Context, _, _, _ string) (json.RawMessage, error) {
			return json.RawMessage(`{"eci":"05"}`), nil
		},
		settleFn: func(_ context.Context, _ provider.ChargePayload, _ json.RawMessage, _, _ string) (string, error) {
			return "WP123456", nil
		},
	}
	controller := newTestController(gateway)

	rec, body := doJSON(t, controller.CompletePayment, "POST", "/payments/pay-1/complete",
		`{`+validCardBody+`,"refid":"refid-1","challengeref":"chref-1"}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != true || body["order"] != "WP123456" {
		t.Fatalf("expected settled response, got %v", body)
	}
}

func TestCollectDeviceDataDeliversRelayedColref(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	_, eventBody := doJSON(t, controller.HandleDdcEvent, "POST", "/ddc/events",
		`{"refid":"refid-1","colref":"0d9c6781-9a44-4b3e-8d1f-2c5a6e7f8a90"}`, nil, nil)
	if eventBody["message"] == nil {
		t.Fatalf("expected event accepted, got %v", eventBody)
	}

	rec, body := doJSON(t, controller.CollectDeviceData, "POST", "/payments/pay-1/ddc",
		`{"refid":"refid-1"}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["colref"] != "0d9c6781-9a44-4b3e-8d1f-2c5a6e7f8a90" || body["synthesized"] != false {
		t.Fatalf("expected relayed colref, got %v", body)
	}
}

func TestCollectDeviceDataRequiresRefid(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	rec, _ := doJSON(t, controller.CollectDeviceData, "POST", "/payments/pay-1/ddc",
		`{}`, []string{"id"}, []string{"pay-1"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDdcPageRendersAutoSubmitForm(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	e := echo.New()
	req := httptest.NewRequest("GET", "/ddc?url=https%3A%2F%2Fddc.example.com%2Fcollect&jwt=jwt-1&bin=400000&refid=refid-1", nil)
	rec := httptest.NewRecorder()
	if err := controller.DdcPage(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, `action="https://ddc.example.com/collect"`) {
		t.Fatalf("expected form action, got %s", page)
	}
	if !strings.Contains(page, `name="Bin" value="400000"`) || !strings.Contains(page, `name="JWT" value="jwt-1"`) {
		t.Fatalf("expected Bin/JWT fields, got %s", page)
	}
	if !strings.Contains(page, "/ddc/events") {
		t.Fatal("expected relay script targeting /ddc/events")
	}
}

func TestDdcPageRejectsNonHTTPURL(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	e := echo.New()
	req := httptest.NewRequest("GET", "/ddc?url=javascript%3Aalert(1)&jwt=jwt-1&refid=refid-1", nil)
	rec := httptest.NewRecorder()
	if err := controller.DdcPage(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChallengePageRendersJWTAndMD(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	e := echo.New()
	req := httptest.NewRequest("GET", "/challenge?url=https%3A%2F%2Facs.example.com%2Fstep-up&jwt=jwt-2&md=md-1&refid=refid-1", nil)
	rec := httptest.NewRecorder()
	if err := controller.ChallengePage(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, `action="https://acs.example.com/step-up"`) {
		t.Fatalf("expected form action, got %s", page)
	}
	if !strings.Contains(page, `name="JWT" value="jwt-2"`) || !strings.Contains(page, `name="MD" value="md-1"`) {
		t.Fatalf("expected JWT/MD fields, got %s", page)
	}
	if !strings.Contains(page, "3dsauthenticated") {
		t.Fatal("expected completion signal forwarding")
	}
}

func TestUpsertGatewaySettings(t *testing.T) {
	controller := newTestController(&controllerGateway{})

	rec, _ := doJSON(t, controller.UpsertGatewaySettings, "PUT", "/merchants/merchant-1/gateway-settings",
		`{"customer_id":"cust-1","country_code":"de","product_code":"CARD","product_description":"Card payment"}`,
		[]string{"id"}, []string{"merchant-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec, _ = doJSON(t, controller.UpsertGatewaySettings, "PUT", "/merchants/merchant-1/gateway-settings",
		`{"country_code":"de"}`, []string{"id"}, []string{"merchant-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing customer_id, got %d", rec.Code)
	}
}
