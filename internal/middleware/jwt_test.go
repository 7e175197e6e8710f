package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantOp   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"malformed token", "Bearer abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"),
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: future}}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: past}}), http.StatusUnauthorized, ""},
		{"no expiry", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}), http.StatusUnauthorized, ""},
		{"unsigned", "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: future}}), http.StatusUnauthorized, ""},
		{"missing role", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: future}}), http.StatusForbidden, ""},
		{"wrong role", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: future}}), http.StatusForbidden, ""},
		{"valid", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret),
			OperatorClaims{Role: AdminRole, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: future}}), http.StatusOK, "ops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var operator any
			r := gin.New()
			r.GET("/", JWTAuth(secret), func(c *gin.Context) {
				operator, _ = c.Get(OperatorKey)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantOp != "" {
				assert.Equal(t, tt.wantOp, operator)
			}
		})
	}
}
