package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/config"
)

func TestIssueParse(t *testing.T) {
	m := NewManager(config.JWTConfig{Secret: "s3cret", Issuer: "srv1", TTL: time.Hour})
	tok, err := m.Issue("srv1/user/1")
	require.NoError(t, err)

	sub, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "srv1/user/1", sub)
}

func TestParseRejects(t *testing.T) {
	m := NewManager(config.JWTConfig{Secret: "s3cret", Issuer: "srv1", TTL: time.Hour})
	other := NewManager(config.JWTConfig{Secret: "other", Issuer: "srv1", TTL: time.Hour})
	wrongIssuer := NewManager(config.JWTConfig{Secret: "s3cret", Issuer: "srv2", TTL: time.Hour})
	expired := &Manager{secret: []byte("s3cret"), issuer: "srv1", ttl: -time.Minute}

	tok, err := other.Issue("srv1/user/1")
	require.NoError(t, err)
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, err = wrongIssuer.Issue("srv1/user/1")
	require.NoError(t, err)
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, err = expired.Issue("srv1/user/1")
	require.NoError(t, err)
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager(config.JWTConfig{}).Issue("srv1/user/1")
	assert.Error(t, err)
}
