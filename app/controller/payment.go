package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/factory"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/mapper"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/service"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("gateway-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) InitiatePayment(ctx echo.Context) error {
	req, err := types.NewInitiatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.paymentService.InitiatePayment(ctx.Request().Context(), attemptFromRequest(req.PaymentId, req.MerchantId, req.CardFields, req.GatewayOverride))
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Initiate payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment initiation failed")
	}

	return ctx.JSON(http.StatusOK, mapper.OutcomeToResponse(outcome))
}

func (c *PaymentController) CollectDeviceData(ctx echo.Context) error {
	req, err := types.NewDdcWaitRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.CollectDeviceData(ctx.Request().Context(), req.Refid)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Device data collection failed")
		return c.writeError(ctx, http.StatusInternalServerError, "device data collection failed")
	}

	return ctx.JSON(http.StatusOK, mapper.DdcResultToResponse(result))
}

func (c *PaymentController) AuthenticatePayment(ctx echo.Context) error {
	req, err := types.NewAuthenticatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	tokens := entity.CorrelationTokens{Colref: req.Colref, Refid: req.Refid}
	outcome, err := c.paymentService.Authenticate(ctx.Request().Context(), attemptFromRequest(req.PaymentId, req.MerchantId, req.CardFields, req.GatewayOverride), tokens)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment authentication failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment authentication failed")
	}

	return ctx.JSON(http.StatusOK, mapper.OutcomeToResponse(outcome))
}

func (c *PaymentController) CompletePayment(ctx echo.Context) error {
	req, err := types.NewCompletePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.paymentService.CompletePayment(ctx.Request().Context(), attemptFromRequest(req.PaymentId, req.MerchantId, req.CardFields, req.GatewayOverride), req.Refid, req.Challengeref)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment completion failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment completion failed")
	}

	return ctx.JSON(http.StatusOK, mapper.OutcomeToResponse(outcome))
}

func (c *PaymentController) HandleDdcEvent(ctx echo.Context) error {
	req, err := types.NewDdcEventRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	c.paymentService.HandleDdcEvent(req.Refid, req.Colref, req.Content)
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "event accepted"})
}

func (c *PaymentController) UpsertGatewaySettings(ctx echo.Context) error {
	req, err := types.NewUpsertGatewaySettingsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	settings := &entity.GatewaySettings{
		CustomerID:         req.CustomerId,
		CountryCode:        req.CountryCode,
		ProductCode:        req.ProductCode,
		ProductDescription: req.ProductDescription,
		CommissionPct:      req.CommissionPct,
	}
	if err := c.paymentService.SaveMerchantSettings(ctx.Request().Context(), req.MerchantId, settings); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrSettingsInvalid):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Save gateway settings failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Gateway settings saved"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func attemptFromRequest(paymentID, merchantID string, card types.CardFields, override *types.GatewaySettingsPayload) service.Attempt {
	attempt := service.Attempt{
		PaymentID:  paymentID,
		MerchantID: merchantID,
		Card: entity.CardInput{
			PAN:         card.Pan,
			CVV:         card.Cvv,
			ExpiryMonth: card.ExpiryMonth,
			ExpiryYear:  card.ExpiryYear,
			HolderName:  card.HolderName,
			Address:     card.Address,
			City:        card.City,
			Zip:         card.Zip,
			Country:     card.Country,
			AmountCents: card.AmountCents,
			Currency:    card.Currency,
		},
	}
	if override != nil {
		attempt.Override = &entity.GatewaySettings{
			CustomerID:         override.CustomerId,
			CountryCode:        override.CountryCode,
			ProductCode:        override.ProductCode,
			ProductDescription: override.ProductDescription,
			CommissionPct:      override.CommissionPct,
		}
	}
	return attempt
}
