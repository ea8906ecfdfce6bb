package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/config"
)

func TestInitWithoutDSN(t *testing.T) {
	flush, err := Init(config.SentryConfig{}, "test")
	require.NoError(t, err)
	assert.NotPanics(t, flush)
	assert.NotPanics(t, func() { CaptureError(errors.New("x"), map[string]string{"k": "v"}) })
}

func TestInitBadDSN(t *testing.T) {
	_, err := Init(config.SentryConfig{DSN: "::not a dsn"}, "test")
	assert.Error(t, err)
}
