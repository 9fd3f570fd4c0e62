package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

// SyncStatus reports the authoritative outcome to the system of record.
// At most one delivery attempt: the system of record is the durability
// boundary, not this orchestrator. Identical patches are safe to resend.
func (s *PaymentService) SyncStatus(ctx context.Context, paymentID string, patch entity.StatusPatch) error {
	baseURL := strings.TrimRight(strings.TrimSpace(s.sorCfg.BaseURL), "/")
	if baseURL == "" {
		s.logger.WithField("payment_id", paymentID).Warn("system of record url not configured, skipping status sync")
		return nil
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, baseURL+"/payments/"+url.PathEscape(paymentID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.sorCfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.sorCfg.APIKey)
	}

	resp, err := s.sorHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status sync failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *PaymentService) syncFailure(ctx context.Context, paymentID string, card entity.CardInput, reason string) {
	if strings.TrimSpace(paymentID) == "" {
		return
	}
	last4 := card.Last4()
	patch := entity.StatusPatch{
		Status:         entity.StatusFailed,
		CardLast4:      &last4,
		FailureMessage: &reason,
	}
	if err := s.SyncStatus(ctx, paymentID, patch); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Error("failed to report FAILED status")
	}
}

func (s *PaymentService) syncPaid(ctx context.Context, paymentID string, card entity.CardInput, orderID string) {
	if strings.TrimSpace(paymentID) == "" {
		return
	}
	last4 := card.Last4()
	method := "card"
	paidAt := time.Now().UTC()
	patch := entity.StatusPatch{
		Status:           entity.StatusPaid,
		CardLast4:        &last4,
		PaymentMethod:    &method,
		GatewayPaymentID: &orderID,
		PaidAt:           &paidAt,
	}
	if err := s.SyncStatus(ctx, paymentID, patch); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Error("failed to report PAID status")
	}
}

// failureReason carries the step and timestamp alongside the raw error so
// the system of record can show a structured diagnosis.
func failureReason(step string, err error) string {
	payload, marshalErr := json.Marshal(struct {
		Error     string `json:"error"`
		Step      string `json:"step"`
		Timestamp string `json:"timestamp"`
	}{
		Error:     err.Error(),
		Step:      step,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if marshalErr != nil {
		return err.Error()
	}
	return string(payload)
}
