package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/gridboard/internal/config"
)

func TestRun_OpensDatabaseAndEngine(t *testing.T) {
	cfg := &config.Config{
		LogLevel:    "error",
		HTTPTimeout: time.Second,
		Database:    config.Database{Driver: "sqlite", DSN: ":memory:"},
	}

	bs, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	defer bs.Close()

	assert.NotNil(t, bs.Log)
	assert.NotNil(t, bs.Engine)
	assert.NotNil(t, bs.Registry)
	require.NoError(t, bs.DB.Ping())
}

func TestRun_UnknownDriver(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "error",
		Database: config.Database{Driver: "nope", DSN: "x"},
	}

	bs, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.NotNil(t, bs.Log)
}
