package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

// ResolveSettings picks the gateway settings for one attempt. Precedence,
// highest first: caller-supplied override, merchant-specific stored settings,
// hard-coded default. Lookup failures log and fall through; a settings
// failure never aborts the payment.
func (s *PaymentService) ResolveSettings(ctx context.Context, merchantID string, override *entity.GatewaySettings) entity.GatewaySettings {
	if override != nil {
		return *override
	}

	merchantID = strings.TrimSpace(merchantID)
	if merchantID != "" && s.settingsRepo != nil {
		if s.settingsCache != nil {
			cached, err := s.settingsCache.Get(ctx, merchantID)
			if err != nil {
				s.logger.WithError(err).WithField("merchant_id", merchantID).Warn("settings cache read failed")
			} else if cached != nil {
				return *cached
			}
		}

		stored, err := s.settingsRepo.FindByMerchantID(ctx, merchantID)
		if err != nil {
			s.logger.WithError(err).WithField("merchant_id", merchantID).Warn("settings lookup failed, using defaults")
		} else if stored != nil {
			if s.settingsCache != nil {
				if err := s.settingsCache.Set(ctx, merchantID, stored); err != nil {
					s.logger.WithError(err).WithField("merchant_id", merchantID).Warn("settings cache write failed")
				}
			}
			return *stored
		}
	}

	return entity.GatewaySettings{
		CustomerID:         s.defaults.CustomerID,
		CountryCode:        s.defaults.CountryCode,
		ProductCode:        s.defaults.ProductCode,
		ProductDescription: s.defaults.ProductDescription,
		CommissionPct:      s.defaults.CommissionPct,
	}
}

// SaveMerchantSettings provisions a merchant's gateway settings and drops
// any cached copy.
func (s *PaymentService) SaveMerchantSettings(ctx context.Context, merchantID string, settings *entity.GatewaySettings) error {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" || settings == nil {
		return ErrInvalidRequest
	}
	if strings.TrimSpace(settings.CustomerID) == "" {
		return ErrSettingsInvalid
	}

	if err := s.settingsRepo.Upsert(ctx, merchantID, settings); err != nil {
		return err
	}
	if s.settingsCache != nil {
		if err := s.settingsCache.Invalidate(ctx, merchantID); err != nil {
			s.logger.WithError(err).WithField("merchant_id", merchantID).Warn("settings cache invalidation failed")
		}
	}
	return nil
}
