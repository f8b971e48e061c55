package httpapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe_QuickStart(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/me", nil, env.sessionCookie(t))
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[meResponse](t, rr)
	assert.True(t, got.QuickStart)
	assert.Nil(t, got.Language)
	assert.Equal(t, "Tax Advisor", got.JobTitle)

	lang := "russian"
	env.users.users["u-1"].Language = &lang
	rr = env.do(t, http.MethodGet, "/me", nil, env.sessionCookie(t))
	got = decode[meResponse](t, rr)
	assert.False(t, got.QuickStart)
	require.NotNil(t, got.Language)
	assert.Equal(t, "russian", *got.Language)
}

func TestUpdateLanguage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPatch, "/user/language", map[string]string{"language": "arabic"}, env.sessionCookie(t))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, languageResponse{Success: true, Language: "arabic"}, decode[languageResponse](t, rr))

	c := sessionCookieFrom(rr)
	require.NotNil(t, c)
	s, err := env.users.ParseSession(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "arabic", s.Language)
}

func TestUpdateLanguage_Invalid(t *testing.T) {
	env := newTestEnv(t)
	env.users.languageErr = fmt.Errorf("%w: unsupported language", common.ErrorValidation)

	rr := env.do(t, http.MethodPatch, "/user/language", map[string]string{"language": "klingon"}, env.sessionCookie(t))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, sessionCookieFrom(rr))
}

func TestQuota(t *testing.T) {
	env := newTestEnv(t)
	env.quota.standing = services.Standing{
		Configured: true,
		Remaining:  12,
		Level:      services.LevelCritical,
		CanStart:   true,
		UpgradeURL: "https://dashboard.example.com",
	}

	rr := env.do(t, http.MethodGet, "/quota", nil, env.sessionCookie(t))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"configured":true,"remaining":12,"level":"critical","canStart":true,"upgradeUrl":"https://dashboard.example.com"}`, rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrorUnauthorized, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrEmptyTranscript, http.StatusBadRequest},
		{common.ErrorNotFound, http.StatusNotFound},
		{&common.QuotaError{Kind: common.ErrQuotaExhausted}, http.StatusForbidden},
		{common.ErrNoQuotaConfigured, http.StatusForbidden},
		{fmt.Errorf("%w: slow", common.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: 503", common.ErrUpstream), http.StatusBadGateway},
		{common.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
