package database

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/config"
	"zns-gateway/internal/models"
)

func TestOpenInMemory_IsolatedDatabases(t *testing.T) {
	a, err := OpenInMemory()
	require.NoError(t, err)
	b, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, a.Create(&models.Partner{CompanyID: 1, Name: "Lan"}).Error)

	var count int64
	b.Model(&models.Partner{}).Count(&count)
	assert.Zero(t, count)
}

func TestSeedConfig(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	cfg := &config.Config{
		DefaultCompanyID:  1,
		BOMAPIKey:         "key",
		BOMAPISecret:      "secret",
		BOMDefaultBaseURL: models.DefaultBaseURL,
	}

	require.NoError(t, SeedConfig(db, cfg, logrus.New()))
	require.NoError(t, SeedConfig(db, cfg, logrus.New()))

	var configs []models.Config
	require.NoError(t, db.Find(&configs).Error)
	require.Len(t, configs, 1)
	assert.Equal(t, "key", configs[0].APIKey)
	assert.True(t, configs[0].Active)
}

func TestSeedConfig_NoCredentialsIsNoop(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, SeedConfig(db, &config.Config{DefaultCompanyID: 1}, logrus.New()))

	var count int64
	db.Model(&models.Config{}).Count(&count)
	assert.Zero(t, count)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"}, logrus.New())
	assert.Error(t, err)
}
