package app

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

type discardStore struct{}

func (discardStore) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "https://storage.test/object", nil
}

func (discardStore) Delete(context.Context, string) error { return nil }

func (discardStore) PublicURL(object string) string { return "https://storage.test/" + object }

func testConfig() *config.Config {
	return &config.Config{
		Pricing: config.PricingConfig{
			Currency:          "AUD",
			GSTPercent:        "10",
			DepositPercent:    "50",
			ProgressPercent:   "40",
			PaymentTermsDays:  7,
			QuoteValidityDays: 30,
		},
		Shipping: config.ShippingConfig{
			PostcodePattern:     config.DefaultPostcodePattern,
			DefaultLeadTimeDays: 28,
			DefaultCountry:      "AU",
		},
		Files:    config.FilesConfig{MaxUploadMB: 5, AllowedTypes: "image/png,application/pdf"},
		Business: config.BusinessConfig{Name: "Northcraft Cabinetry"},
	}
}

func TestNewServicesWithoutStorageSkipsFiles(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewServices(testConfig(), Clients{DB: db.FromConn(testdb.Open(t))}, logg)
	require.NoError(t, err)

	assert.NotNil(t, svc.Cart)
	assert.NotNil(t, svc.Quotes)
	assert.NotNil(t, svc.Checkout)
	assert.NotNil(t, svc.Payments)
	assert.Nil(t, svc.Files)
	assert.Nil(t, svc.Messages)
}

func TestNewServicesWithStorageWiresFilesAndMessages(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewServices(testConfig(), Clients{DB: db.FromConn(testdb.Open(t)), Storage: discardStore{}}, logg)
	require.NoError(t, err)

	assert.NotNil(t, svc.Files)
	assert.NotNil(t, svc.Messages)
}

func TestNewServicesRequiresDatabase(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	_, err := NewServices(testConfig(), Clients{}, logg)
	require.Error(t, err)
}
