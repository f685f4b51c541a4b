package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/session"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*session.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Claims), args.Error(1)
}

func testClaims(subjectID, email string) *session.Claims {
	return &session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-" + subjectID,
			ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		SubjectID: subjectID,
		Email:     email,
	}
}

func assertUniformUnauthorized(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{
		"error":   "unauthorized",
		"message": "Not authenticated",
	}, body)
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid credential attaches identity", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		claims := testClaims("user-123", "user@example.com")
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, Identity{
				SubjectID: "user-123",
				Email:     "user@example.com",
				SessionID: "jti-user-123",
				ExpiresAt: claims.ExpiresAt.Time,
			}, identity)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").
			Return(testClaims("user-1", "a@b.co"), nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	rejected := []struct {
		name       string
		header     string
		validator  func(*MockTokenValidator)
		wantCalled bool
	}{
		{
			name: "missing header",
		},
		{
			name:   "malformed header",
			header: "InvalidFormat",
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
		},
		{
			name:   "empty bearer",
			header: "Bearer   ",
		},
		{
			name:   "invalid token",
			header: "Bearer invalid-token",
			validator: func(m *MockTokenValidator) {
				m.On("ValidateToken", mock.Anything, "invalid-token").
					Return(nil, session.ErrInvalidToken)
			},
			wantCalled: true,
		},
		{
			name:   "expired token",
			header: "Bearer expired-token",
			validator: func(m *MockTokenValidator) {
				m.On("ValidateToken", mock.Anything, "expired-token").
					Return(nil, session.ErrTokenExpired)
			},
			wantCalled: true,
		},
		{
			name:   "revoked token",
			header: "Bearer revoked-token",
			validator: func(m *MockTokenValidator) {
				m.On("ValidateToken", mock.Anything, "revoked-token").
					Return(nil, session.ErrTokenRevoked)
			},
			wantCalled: true,
		},
		{
			name:   "validator failure",
			header: "Bearer some-token",
			validator: func(m *MockTokenValidator) {
				m.On("ValidateToken", mock.Anything, "some-token").
					Return(nil, errors.New("boom"))
			},
			wantCalled: true,
		},
	}

	for _, tt := range rejected {
		t.Run(tt.name+" returns uniform 401", func(t *testing.T) {
			mockValidator := new(MockTokenValidator)
			if tt.validator != nil {
				tt.validator(mockValidator)
			}
			middleware := NewAuthMiddleware(mockValidator, logger)

			handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assertUniformUnauthorized(t, w)
			if tt.wantCalled {
				mockValidator.AssertExpectations(t)
			} else {
				mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("no credential continues without identity", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		called := false
		handler := middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, ok := IdentityFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("valid credential attaches identity", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").
			Return(testClaims("user-9", "nine@example.com"), nil)

		handler := middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, "user-9", identity.SubjectID)
			assert.Equal(t, "nine@example.com", identity.Email)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid credential is rejected", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)
		mockValidator.On("ValidateToken", mock.Anything, "bad-token").
			Return(nil, session.ErrInvalidToken)

		handler := middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assertUniformUnauthorized(t, w)
	})
}

func TestRequireAuth_WithSessionIssuer(t *testing.T) {
	now := time.Now()
	issuer, err := session.NewIssuer("middleware-secret", session.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	middleware := NewAuthMiddleware(issuer, zap.New(core))

	handler := chimw.RequestID(middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		_, _ = w.Write([]byte(identity.SubjectID))
	})))

	token, err := issuer.IssueSessionToken("110248495921238986420", "ada@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "110248495921238986420", w.Body.String())

	// Past the validity window the same credential is refused
	now = now.Add(session.TokenTTL + time.Minute)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assertUniformUnauthorized(t, w)
	entries := logs.FilterMessage("token validation failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotEmpty(t, fields["request_id"])
	assert.Contains(t, fields["error"], "token expired")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc", "abc"},
		{"uppercase scheme", "BEARER abc", "abc"},
		{"extra whitespace", "Bearer   abc  ", "abc"},
		{"no token", "Bearer", ""},
		{"other scheme", "Token abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(req))
		})
	}
}

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{SubjectID: "s", Email: "e@x.io"})
	identity, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s", identity.SubjectID)
}
