package mapper

import (
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/types"
)

// OutcomeToResponse flattens an attempt outcome into the wire response.
// Intermediate steps carry a placeholder order label for the UI; a real
// settlement id appears only on success.
func OutcomeToResponse(outcome *entity.AttemptOutcome) *types.PaymentStepResponse {
	if outcome == nil {
		return &types.PaymentStepResponse{Success: false, Message: "no outcome"}
	}

	switch outcome.Kind {
	case entity.OutcomeDdcRequired:
		return &types.PaymentStepResponse{
			Success:     false,
			RequiresDdc: true,
			Order:       entity.NewPendingOrderID(),
			Message:     "device data collection required",
			DdcParams: &types.DdcParams{
				URL:   outcome.Ddc.URL,
				JWT:   outcome.Ddc.JWT,
				Bin:   outcome.Ddc.Bin,
				Refid: outcome.Ddc.TransactionReference,
			},
		}
	case entity.OutcomeChallengeRequired:
		return &types.PaymentStepResponse{
			Success:     false,
			Requires3ds: true,
			Order:       entity.NewPendingOrderID(),
			Message:     "3ds challenge required",
			Challenge: &types.ChallengeParams{
				URL:   outcome.Challenge.URL,
				JWT:   outcome.Challenge.JWT,
				MD:    outcome.Challenge.MD,
				Refid: outcome.Reference,
			},
		}
	case entity.OutcomeSettled:
		return &types.PaymentStepResponse{
			Success: true,
			Order:   outcome.OrderID,
			Message: "payment settled",
		}
	default:
		return &types.PaymentStepResponse{
			Success: false,
			Message: outcome.Reason,
		}
	}
}

func DdcResultToResponse(result *entity.DDCResult) *types.DdcResultResponse {
	if result == nil {
		return nil
	}
	return &types.DdcResultResponse{
		Colref:      result.Colref,
		Refid:       result.Refid,
		Synthesized: result.Synthesized,
	}
}
