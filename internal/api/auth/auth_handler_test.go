package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/briefly-ai/briefly-api/internal/types"
)

// MockAuthService is a mock implementation of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password, referralCode string) (*types.Profile, error) {
	args := m.Called(ctx, username, email, password, referralCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockAuthService) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	args := m.Called(ctx, userID, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthService) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.Profile, error) {
	args := m.Called(ctx, provider, providerUser)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockAuthService) IssueTokens(ctx context.Context, profile *types.Profile) (string, string, error) {
	args := m.Called(ctx, profile)
	return args.String(0), args.String(1), args.Error(2)
}

func newTestHandler() (*AuthHandler, *MockAuthService) {
	mockService := new(MockAuthService)
	handler := NewAuthHandler(mockService, slog.Default())
	return handler, mockService
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockService := newTestHandler()

		profile := &types.Profile{
			ID:           uuid.New(),
			Username:     "testuser",
			Email:        "new@example.com",
			AccountCode:  "12345",
			ReferralCode: "SHARE123",
		}
		mockService.On("Register", mock.Anything, "testuser", "new@example.com", "password123", "").
			Return(profile, nil).Once()

		req := postJSON(t, "/auth/register", RegisterRequest{
			Username: "testuser",
			Email:    "new@example.com",
			Password: "password123",
		})
		rr := httptest.NewRecorder()
		handler.Register(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "SHARE123", resp["referral_code"])
		mockService.AssertExpectations(t)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		handler, mockService := newTestHandler()

		mockService.On("Register", mock.Anything, "testuser", "taken@example.com", "password123", "").
			Return(nil, fmt.Errorf("duplicate: %w", types.ErrConflict)).Once()

		req := postJSON(t, "/auth/register", RegisterRequest{
			Username: "testuser",
			Email:    "taken@example.com",
			Password: "password123",
		})
		rr := httptest.NewRecorder()
		handler.Register(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		handler, mockService := newTestHandler()

		req := postJSON(t, "/auth/register", RegisterRequest{
			Username: "testuser",
			Email:    "new@example.com",
			Password: "short",
		})
		rr := httptest.NewRecorder()
		handler.Register(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Register",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockService := newTestHandler()

		mockService.On("Login", mock.Anything, "test@example.com", "password123").
			Return("access-token", "refresh-token", nil).Once()

		req := postJSON(t, "/auth/login", LoginRequest{Email: "test@example.com", Password: "password123"})
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp LoginResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "access-token", resp.AccessToken)
		assert.Equal(t, "refresh-token", resp.RefreshToken)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		handler, mockService := newTestHandler()

		mockService.On("Login", mock.Anything, "test@example.com", "wrong").
			Return("", "", fmt.Errorf("bad credentials: %w", types.ErrUnauthenticated)).Once()

		req := postJSON(t, "/auth/login", LoginRequest{Email: "test@example.com", Password: "wrong"})
		rr := httptest.NewRecorder()
		handler.Login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "not_logged_in", resp["error"])
	})
}

func TestRefreshSessionHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockService := newTestHandler()

		mockService.On("RefreshSession", mock.Anything, "old-refresh").
			Return("new-access", "new-refresh", nil).Once()

		req := postJSON(t, "/auth/refresh", RefreshTokenRequest{RefreshToken: "old-refresh"})
		rr := httptest.NewRecorder()
		handler.RefreshSession(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp TokenResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "new-refresh", resp.RefreshToken)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		handler, mockService := newTestHandler()

		mockService.On("RefreshSession", mock.Anything, "stale").
			Return("", "", errors.New("token expired")).Once()

		req := postJSON(t, "/auth/refresh", RefreshTokenRequest{RefreshToken: "stale"})
		rr := httptest.NewRecorder()
		handler.RefreshSession(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUpdatePasswordHandler(t *testing.T) {
	t.Run("RequiresAuth", func(t *testing.T) {
		handler, _ := newTestHandler()

		req := postJSON(t, "/auth/update-password", ChangePasswordRequest{
			OldPassword: "old-password", NewPassword: "new-password-123",
		})
		rr := httptest.NewRecorder()
		handler.UpdatePassword(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Success", func(t *testing.T) {
		handler, mockService := newTestHandler()
		userID := uuid.NewString()

		mockService.On("UpdatePassword", mock.Anything, userID, "old-password", "new-password-123").
			Return(nil).Once()

		req := postJSON(t, "/auth/update-password", ChangePasswordRequest{
			OldPassword: "old-password", NewPassword: "new-password-123",
		})
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		rr := httptest.NewRecorder()
		handler.UpdatePassword(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})
}
