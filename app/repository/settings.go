package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

var ErrSettingsAlreadyExist = errors.New("gateway settings already exist")

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GatewaySettingsRepository reads per-merchant provider addressing from the
// gateway_settings table.
type GatewaySettingsRepository struct {
	db DBTX
}

func NewGatewaySettingsRepository(db DBTX) *GatewaySettingsRepository {
	return &GatewaySettingsRepository{db: db}
}

// FindByMerchantID returns nil without error when the merchant has no row.
func (r *GatewaySettingsRepository) FindByMerchantID(ctx context.Context, merchantID string) (*entity.GatewaySettings, error) {
	query := `
		SELECT customer_id, country_code, product_code, product_description, commission_pct
		FROM gateway_settings
		WHERE merchant_id = ?
	`

	var settings entity.GatewaySettings
	err := r.db.QueryRowContext(ctx, query, merchantID).Scan(
		&settings.CustomerID,
		&settings.CountryCode,
		&settings.ProductCode,
		&settings.ProductDescription,
		&settings.CommissionPct,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// Upsert provisions or replaces a merchant's gateway settings.
func (r *GatewaySettingsRepository) Upsert(ctx context.Context, merchantID string, settings *entity.GatewaySettings) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO gateway_settings (
			merchant_id, customer_id, country_code, product_code, product_description, commission_pct,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			customer_id = VALUES(customer_id),
			country_code = VALUES(country_code),
			product_code = VALUES(product_code),
			product_description = VALUES(product_description),
			commission_pct = VALUES(commission_pct),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		merchantID,
		settings.CustomerID,
		settings.CountryCode,
		settings.ProductCode,
		settings.ProductDescription,
		settings.CommissionPct,
		now,
		now,
	)
	if isDuplicateEntryError(err) {
		return ErrSettingsAlreadyExist
	}
	return err
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
