package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evenup_web/internal/backend"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon-key", WithHTTPClient(srv.Client()))
}

func TestSendOTP_PostsEmailWithoutSignup(t *testing.T) {
	var got map[string]any
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/otp", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.SendOTP(context.Background(), "ops@evenup.in", backend.OTPOptions{}))
	assert.Equal(t, "ops@evenup.in", got["email"])
	assert.Equal(t, false, got["create_user"])
}

func TestSendOTP_ForwardsProviderMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"otp_disabled","msg":"Signups not allowed for otp"}`))
	})

	err := c.SendOTP(context.Background(), "nobody@evenup.in", backend.OTPOptions{})
	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Signups not allowed for otp", be.Message)
	assert.Equal(t, "otp_disabled", be.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, be.Status)
}

func TestVerifyOTP_MapsSession(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "email", req.Type)
		assert.Equal(t, "654321", req.Token)
		_, _ = w.Write([]byte(`{
			"access_token":"at","refresh_token":"rt","expires_in":3600,"expires_at":1900000000,
			"user":{"id":"u-1","email":"ops@evenup.in","email_confirmed_at":"2024-05-01T10:00:00Z",
			        "user_metadata":{"full_name":"Ops Person"}}}`))
	})

	s, err := c.VerifyOTP(context.Background(), "ops@evenup.in", "654321")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "rt", s.RefreshToken)
	assert.EqualValues(t, 1900000000, s.ExpiresAt.Unix())
	assert.Equal(t, "u-1", s.User.ID)
	require.NotNil(t, s.User.EmailConfirmedAt)
	assert.Equal(t, "Ops Person", s.User.DisplayName())
}

func TestRefresh_ErrorDescriptionShape(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token: Refresh Token Not Found"}`))
	})

	_, err := c.Refresh(context.Background(), "stale")
	require.EqualError(t, err, "Invalid Refresh Token: Refresh Token Not Found")
}

func TestVerifyEmailLink_SendsTokenHash(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "signup", req.Type)
		assert.Equal(t, "hash-1", req.TokenHash)
		assert.Empty(t, req.Email)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Email link is invalid or has expired"}`))
	})

	_, err := c.VerifyEmailLink(context.Background(), "hash-1", "signup")
	require.EqualError(t, err, "Email link is invalid or has expired")
}

func TestSignOut_UsesAccessToken(t *testing.T) {
	called := false
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SignOut(context.Background(), &backend.Session{AccessToken: "at"}))
	assert.True(t, called)
	require.NoError(t, c.SignOut(context.Background(), nil))
}

func TestDecodeError_FallsBackToStatusText(t *testing.T) {
	err := decodeError(http.StatusBadGateway, []byte("<html>"))
	assert.EqualError(t, err, "Bad Gateway")
}
