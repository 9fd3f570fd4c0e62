package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/factory"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-3ds-gateway/config"
)

type threeDSGateway interface {
	Charge(ctx context.Context, payload provider.ChargePayload) (*provider.InitiationResult, error)
	Authenticate(ctx context.Context, payload provider.ChargePayload, colref, refid string) (*provider.AuthResult, error)
	Verify(ctx context.Context, customer, refid, challengeref string) (json.RawMessage, error)
	Settle(ctx context.Context, payload provider.ChargePayload, auth json.RawMessage, refid, challengeref string) (string, error)
}

type feeQuoter interface {
	Quote(ctx context.Context, amountCents int64, currency, customer, pan string) (*entity.FeeQuote, error)
}

type settingsRepository interface {
	FindByMerchantID(ctx context.Context, merchantID string) (*entity.GatewaySettings, error)
	Upsert(ctx context.Context, merchantID string, settings *entity.GatewaySettings) error
}

type settingsCache interface {
	Get(ctx context.Context, merchantID string) (*entity.GatewaySettings, error)
	Set(ctx context.Context, merchantID string, settings *entity.GatewaySettings) error
	Invalidate(ctx context.Context, merchantID string) error
}

// PaymentService drives a card payment through the 3DS flow. It holds no
// attempt state between calls: the caller re-supplies the card payload and
// correlation tokens at every step, so any step can be resumed by passing
// the same tokens back.
type PaymentService struct {
	settingsRepo  settingsRepository
	settingsCache settingsCache
	quoter        feeQuoter
	gateway       threeDSGateway
	collector     *DDCCollector

	defaults config.GatewayDefaultsConfig
	sorCfg   config.SystemOfRecordConfig
	sorHTTP  *http.Client

	logger logrus.FieldLogger
}

func NewPaymentService(
	settingsRepo settingsRepository,
	settingsCache settingsCache,
	quoter feeQuoter,
	gateway threeDSGateway,
	collector *DDCCollector,
	defaults config.GatewayDefaultsConfig,
	sorCfg config.SystemOfRecordConfig,
) *PaymentService {
	timeout := sorCfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PaymentService{
		settingsRepo:  settingsRepo,
		settingsCache: settingsCache,
		quoter:        quoter,
		gateway:       gateway,
		collector:     collector,
		defaults:      defaults,
		sorCfg:        sorCfg,
		sorHTTP:       &http.Client{Timeout: timeout},
		logger:        factory.NewModuleLogger("payment-service"),
	}
}

// Attempt carries everything the caller must re-supply for one step of one
// logical attempt.
type Attempt struct {
	PaymentID  string
	MerchantID string
	Card       entity.CardInput
	Override   *entity.GatewaySettings
}

// InitiatePayment submits the first charge and classifies what the flow
// needs next: device-data collection, a legacy interactive challenge, or a
// terminal failure. An unclear first-charge response is never success.
func (s *PaymentService) InitiatePayment(ctx context.Context, attempt Attempt) (*entity.AttemptOutcome, error) {
	settings := s.ResolveSettings(ctx, attempt.MerchantID, attempt.Override)
	quote := s.quoteOrFallback(ctx, attempt.Card, settings)
	payload := buildChargePayload(attempt.Card, settings, quote)

	result, err := s.gateway.Charge(ctx, payload)
	if err != nil {
		return s.fail(ctx, attempt, stepInitiate, err)
	}

	switch result.Kind {
	case provider.InitiationDdc:
		ddc := *result.Ddc
		if strings.TrimSpace(ddc.TransactionReference) == "" {
			ddc.TransactionReference = entity.NewRefid()
		}
		return &entity.AttemptOutcome{Kind: entity.OutcomeDdcRequired, Ddc: &ddc}, nil
	case provider.InitiationChallenge:
		return &entity.AttemptOutcome{
			Kind:      entity.OutcomeChallengeRequired,
			Challenge: result.Challenge,
			Reference: entity.NewRefid(),
		}, nil
	default:
		defect := &provider.FlowError{
			Kind:   provider.ErrorKindDefect,
			Reason: reasonUnclearInitiation + ": " + result.RawBody,
		}
		return s.fail(ctx, attempt, stepInitiate, defect)
	}
}

// CollectDeviceData blocks until the collector yields a session reference
// for refid, real or synthesized.
func (s *PaymentService) CollectDeviceData(ctx context.Context, refid string) (*entity.DDCResult, error) {
	refid = strings.TrimSpace(refid)
	if refid == "" {
		return nil, ErrInvalidRequest
	}
	return s.collector.Wait(ctx, refid)
}

// HandleDdcEvent feeds a browser relay event to the collector: a session
// reference message, frame content for the scanner, or both.
func (s *PaymentService) HandleDdcEvent(refid, colref, content string) {
	if colref != "" {
		s.collector.Deliver(refid, colref)
	}
	if content != "" {
		s.collector.AppendContent(refid, content)
	}
}

// Authenticate submits the recovered session reference with the payment
// data. A decline here is terminal; declines that followed a synthesized
// colref are labelled so they can be told apart from genuine ones.
func (s *PaymentService) Authenticate(ctx context.Context, attempt Attempt, tokens entity.CorrelationTokens) (*entity.AttemptOutcome, error) {
	settings := s.ResolveSettings(ctx, attempt.MerchantID, attempt.Override)
	quote := s.quoteOrFallback(ctx, attempt.Card, settings)
	payload := buildChargePayload(attempt.Card, settings, quote)

	result, err := s.gateway.Authenticate(ctx, payload, tokens.Colref, tokens.Refid)
	if err != nil {
		var flowErr *provider.FlowError
		if errors.As(err, &flowErr) && isSynthesizedColref(tokens.Colref) {
			flowErr.Reason = ddcFallbackReasonPrefix + flowErr.Reason
		}
		return s.fail(ctx, attempt, stepAuthenticate, err)
	}

	reference := strings.TrimSpace(result.Reference)
	if reference == "" {
		reference = tokens.Refid
	}
	return &entity.AttemptOutcome{
		Kind:      entity.OutcomeChallengeRequired,
		Challenge: result.Challenge,
		Reference: reference,
	}, nil
}

// CompletePayment re-validates the finished challenge and submits the final
// charge. This is the only path allowed to report PAID, and it does so only
// for a provider-issued order id.
func (s *PaymentService) CompletePayment(ctx context.Context, attempt Attempt, refid, challengeref string) (*entity.AttemptOutcome, error) {
	settings := s.ResolveSettings(ctx, attempt.MerchantID, attempt.Override)
	quote := s.quoteOrFallback(ctx, attempt.Card, settings)
	payload := buildChargePayload(attempt.Card, settings, quote)

	auth, err := s.gateway.Verify(ctx, settings.CustomerID, refid, challengeref)
	if err != nil {
		return s.fail(ctx, attempt, stepVerify, err)
	}

	order, err := s.gateway.Settle(ctx, payload, auth, refid, challengeref)
	if err != nil {
		return s.fail(ctx, attempt, stepSettle, err)
	}
	if entity.IsPlaceholderOrderID(order) {
		defect := &provider.FlowError{
			Kind:   provider.ErrorKindDefect,
			Reason: "settlement returned a placeholder-shaped order id: " + order,
		}
		return s.fail(ctx, attempt, stepSettle, defect)
	}

	s.syncPaid(ctx, attempt.PaymentID, attempt.Card, order)
	return &entity.AttemptOutcome{Kind: entity.OutcomeSettled, OrderID: order}, nil
}

// fail records the terminal failure on the system of record and decides how
// it surfaces: declines and defects become a declined outcome for the
// caller, transport and protocol failures propagate as errors.
func (s *PaymentService) fail(ctx context.Context, attempt Attempt, step string, err error) (*entity.AttemptOutcome, error) {
	s.syncFailure(ctx, attempt.PaymentID, attempt.Card, failureReason(step, err))

	var flowErr *provider.FlowError
	if errors.As(err, &flowErr) {
		flowErr.Step = step
		if flowErr.Kind == provider.ErrorKindDecline || flowErr.Kind == provider.ErrorKindDefect {
			return &entity.AttemptOutcome{Kind: entity.OutcomeDeclined, Reason: flowErr.Reason}, nil
		}
	}
	return nil, err
}

func (s *PaymentService) quoteOrFallback(ctx context.Context, card entity.CardInput, settings entity.GatewaySettings) entity.FeeQuote {
	if s.quoter == nil {
		return entity.FallbackFeeQuote
	}
	quote, err := s.quoter.Quote(ctx, card.AmountCents, card.Currency, settings.CustomerID, card.PAN)
	if err != nil {
		s.logger.WithError(err).Warn("fee quote failed, using fallback constants")
		return entity.FallbackFeeQuote
	}
	return *quote
}

func buildChargePayload(card entity.CardInput, settings entity.GatewaySettings, quote entity.FeeQuote) provider.ChargePayload {
	return provider.ChargePayload{
		Customer:           settings.CustomerID,
		CountryCode:        settings.CountryCode,
		Product:            settings.ProductCode,
		ProductDescription: settings.ProductDescription,
		PAN:                strings.TrimSpace(card.PAN),
		CVV:                card.CVV,
		ExpMonth:           card.ExpiryMonth,
		ExpYear:            card.ExpiryYear,
		Cardholder:         card.HolderName,
		Address:            card.Address,
		City:               card.City,
		Zip:                card.Zip,
		Country:            card.Country,
		AmountCents:        card.AmountCents,
		Currency:           card.Currency,
		USDCRate:           quote.USDCRate,
		PoolBalance:        quote.PoolBalance,
	}
}
