package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateUser(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	args := m.Called(ctx, userID, name)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

func TestAuthHandler_CreateUser_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	user := domain.NewUser("user-1", "analyst@gridpoint.energy", time.Now().UTC())
	mockSvc.On("CreateUser", mock.Anything, "analyst@gridpoint.energy").Return(user, nil)

	body := `{"email":"analyst@gridpoint.energy"}`
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data UserResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.Data.ID)
	assert.Equal(t, "analyst@gridpoint.energy", resp.Data.Email)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateUser_MissingEmail(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email is required")
}

func TestAuthHandler_CreateUser_AlreadyExists(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateUser", mock.Anything, "dupe@gridpoint.energy").Return(nil, domain.ErrUserAlreadyExists)

	body := `{"email":"dupe@gridpoint.energy"}`
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_CreateAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "user-456", "ci key").Return("gp_secrettoken", nil)

	body := `{"name":"ci key"}`
	req := requestWithUserID(http.MethodPost, "/apikeys", []byte(body))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data APIKeyResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "gp_secrettoken", resp.Data.Token)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateAPIKey_Unauthorized(t *testing.T) {
	handler := NewAuthHandler(new(MockAuthService))

	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(`{"name":"x"}`)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ListAPIKeys_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	now := time.Now().UTC()
	revoked := now.Add(-time.Hour)
	keys := []*domain.APIKey{
		{ID: "key-1", UserID: "user-456", Name: "active", CreatedAt: now},
		{ID: "key-2", UserID: "user-456", Name: "old", CreatedAt: now, RevokedAt: &revoked},
	}
	mockSvc.On("ListAPIKeys", mock.Anything, "user-456").Return(keys, nil)

	req := requestWithUserID(http.MethodGet, "/apikeys", nil)
	w := httptest.NewRecorder()

	handler.ListAPIKeys(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data APIKeyListResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	require.Len(t, resp.Data.Items, 2)
	assert.Empty(t, resp.Data.Items[0].RevokedAt)
	assert.NotEmpty(t, resp.Data.Items[1].RevokedAt)
	assert.Empty(t, resp.Data.Items[0].Token)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_RevokeAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("RevokeAPIKey", mock.Anything, "key-1").Return(nil)

	req := requestWithUserID(http.MethodDelete, "/apikeys/key-1", nil)
	req = withURLParam(req, "id", "key-1")
	w := httptest.NewRecorder()

	handler.RevokeAPIKey(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
