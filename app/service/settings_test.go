package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/config"
)

type fakeSettingsCache struct {
	mu          sync.Mutex
	values      map[string]*entity.GatewaySettings
	getErr      error
	sets        int
	invalidates int
}

func (c *fakeSettingsCache) Get(_ context.Context, merchantID string) (*entity.GatewaySettings, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[merchantID], nil
}

func (c *fakeSettingsCache) Set(_ context.Context, merchantID string, settings *entity.GatewaySettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[string]*entity.GatewaySettings{}
	}
	copied := *settings
	c.values[merchantID] = &copied
	c.sets++
	return nil
}

func (c *fakeSettingsCache) Invalidate(_ context.Context, merchantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, merchantID)
	c.invalidates++
	return nil
}

func newSettingsTestService(repo settingsRepository, cache settingsCache) *PaymentService {
	return NewPaymentService(
		repo,
		cache,
		nil,
		&fakeGateway{},
		NewDDCCollector(config.DDCConfig{Deadline: 50 * time.Millisecond}),
		config.GatewayDefaultsConfig{
			CustomerID:         "default",
			CountryCode:        "US",
			ProductCode:        "CARD",
			ProductDescription: "Card payment",
		},
		config.SystemOfRecordConfig{},
	)
}

func TestResolveSettingsOverrideWinsOverStored(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*entity.GatewaySettings{
		"merchant-1": {CustomerID: "stored"},
	}}
	svc := newSettingsTestService(repo, nil)

	settings := svc.ResolveSettings(context.Background(), "merchant-1", &entity.GatewaySettings{CustomerID: "override"})
	if settings.CustomerID != "override" {
		t.Fatalf("expected override to win, got %q", settings.CustomerID)
	}
}

func TestResolveSettingsStoredWinsOverDefault(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*entity.GatewaySettings{
		"merchant-1": {CustomerID: "stored", CountryCode: "DE"},
	}}
	svc := newSettingsTestService(repo, nil)

	settings := svc.ResolveSettings(context.Background(), "merchant-1", nil)
	if settings.CustomerID != "stored" || settings.CountryCode != "DE" {
		t.Fatalf("expected stored settings, got %+v", settings)
	}
}

func TestResolveSettingsFallsBackToDefault(t *testing.T) {
	svc := newSettingsTestService(&fakeSettingsRepo{}, nil)

	settings := svc.ResolveSettings(context.Background(), "unknown-merchant", nil)
	if settings.CustomerID != "default" {
		t.Fatalf("expected default settings, got %+v", settings)
	}
}

// A settings-lookup failure is non-fatal: the resolver logs and continues
// with the fallback instead of aborting the payment.
func TestResolveSettingsLookupFailureUsesDefault(t *testing.T) {
	svc := newSettingsTestService(&fakeSettingsRepo{err: errors.New("db down")}, nil)

	settings := svc.ResolveSettings(context.Background(), "merchant-1", nil)
	if settings.CustomerID != "default" {
		t.Fatalf("expected default settings on lookup failure, got %+v", settings)
	}
}

func TestResolveSettingsPopulatesCacheOnMiss(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*entity.GatewaySettings{
		"merchant-1": {CustomerID: "stored"},
	}}
	cache := &fakeSettingsCache{}
	svc := newSettingsTestService(repo, cache)

	if got := svc.ResolveSettings(context.Background(), "merchant-1", nil); got.CustomerID != "stored" {
		t.Fatalf("expected stored settings, got %+v", got)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	repo.err = errors.New("db down")
	if got := svc.ResolveSettings(context.Background(), "merchant-1", nil); got.CustomerID != "stored" {
		t.Fatalf("expected cached settings to serve a second lookup, got %+v", got)
	}
}

func TestResolveSettingsCacheFailureFallsThroughToStore(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*entity.GatewaySettings{
		"merchant-1": {CustomerID: "stored"},
	}}
	cache := &fakeSettingsCache{getErr: errors.New("redis down")}
	svc := newSettingsTestService(repo, cache)

	if got := svc.ResolveSettings(context.Background(), "merchant-1", nil); got.CustomerID != "stored" {
		t.Fatalf("expected stored settings despite cache failure, got %+v", got)
	}
}

func TestSaveMerchantSettingsInvalidatesCache(t *testing.T) {
	repo := &fakeSettingsRepo{}
	cache := &fakeSettingsCache{}
	svc := newSettingsTestService(repo, cache)

	err := svc.SaveMerchantSettings(context.Background(), "merchant-1", &entity.GatewaySettings{CustomerID: "cust-1"})
	if err != nil {
		t.Fatalf("expected save, got %v", err)
	}
	if cache.invalidates != 1 {
		t.Fatalf("expected cache invalidation, got %d", cache.invalidates)
	}
	if repo.settings["merchant-1"].CustomerID != "cust-1" {
		t.Fatal("expected settings persisted")
	}
}

func TestSaveMerchantSettingsValidates(t *testing.T) {
	svc := newSettingsTestService(&fakeSettingsRepo{}, nil)

	if err := svc.SaveMerchantSettings(context.Background(), "", &entity.GatewaySettings{CustomerID: "c"}); err == nil {
		t.Fatal("expected error for empty merchant id")
	}
	if err := svc.SaveMerchantSettings(context.Background(), "merchant-1", &entity.GatewaySettings{}); err == nil {
		t.Fatal("expected error for missing customer id")
	}
}
