// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volstory/volstory-go/internal/platform/sec"
)

/*
TestTokenService_RoundTrip verifies a signed token verifies with the same
secret and carries the identity claims.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service, err := sec.NewTokenService("test-secret", "volstory-dev")
	require.NoError(t, err)

	signedToken, err := service.GenerateAccessToken("usr-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signedToken)

	claims, err := service.VerifyToken(signedToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, "usr-1", claims.Subject)
	assert.Equal(t, "volstory-dev", claims.Issuer)
}

/*
TestTokenService_Rejections covers the tamper and lifecycle failure modes.
*/
func TestTokenService_Rejections(t *testing.T) {
	service, err := sec.NewTokenService("test-secret", "volstory-dev")
	require.NoError(t, err)

	t.Run("empty_secret", func(t *testing.T) {
		_, err := sec.NewTokenService("", "volstory-dev")
		assert.Error(t, err)
	})

	t.Run("garbage_token", func(t *testing.T) {
		_, err := service.VerifyToken("not.a.jwt")
		assert.Error(t, err)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		other, err := sec.NewTokenService("other-secret", "volstory-dev")
		require.NoError(t, err)

		signedToken, err := other.GenerateAccessToken("usr-1", time.Minute)
		require.NoError(t, err)

		_, err = service.VerifyToken(signedToken)
		assert.Error(t, err)
	})

	t.Run("expired_token", func(t *testing.T) {
		signedToken, err := service.GenerateAccessToken("usr-1", -time.Minute)
		require.NoError(t, err)

		_, err = service.VerifyToken(signedToken)
		assert.Error(t, err)
	})

	t.Run("unsigned_alg", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "usr-1"})
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.VerifyToken(unsigned)
		assert.Error(t, err)
	})
}

/*
TestHashToken verifies hashing is deterministic, distinct per token, and
never stores the raw value.
*/
func TestHashToken(t *testing.T) {
	tokenA, err := sec.NewRefreshToken()
	require.NoError(t, err)
	tokenB, err := sec.NewRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, tokenA, tokenB)
	assert.Len(t, tokenA, 64, "32 random bytes, hex encoded")

	assert.Equal(t, sec.HashToken(tokenA), sec.HashToken(tokenA))
	assert.NotEqual(t, sec.HashToken(tokenA), sec.HashToken(tokenB))
	assert.NotEqual(t, tokenA, sec.HashToken(tokenA))
}
