package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

func NewMock(t *testing.T) (*AuthHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := New(service)
	return handler, service
}

func TestRegisterHandler(t *testing.T) {
	handler, service := NewMock(t)
	customer := &domain.User{ID: 1, Login: "newuser", Role: domain.RoleCustomer}

	tests := []struct {
		name          string
		body          string
		prepareMock   func()
		expectedCode  int
		expectedError string
		expectedToken string
	}{
		{
			name: "Successful registration",
			body: `{"login":"newuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", domain.Role("")).Return(customer, nil)
				service.EXPECT().GenerateToken(customer).Return("some-jwt-token", nil)
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer some-jwt-token",
		},
		{
			name: "Vendor registration",
			body: `{"login":"spice-shop","password":"password123","role":"vendor"}`,
			prepareMock: func() {
				vendor := &domain.User{ID: 2, Login: "spice-shop", Role: domain.RoleVendor}
				service.EXPECT().Register(context.Background(), "spice-shop", "password123", domain.RoleVendor).Return(vendor, nil)
				service.EXPECT().GenerateToken(vendor).Return("vendor-token", nil)
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer vendor-token",
		},
		{
			name:         "Admin role cannot be requested",
			body:         `{"login":"newuser","password":"password123","role":"admin"}`,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "User already exists",
			body: `{"login":"existinguser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "existinguser", "password123", domain.Role("")).Return(nil, domain.ErrLoginTaken)
			},
			expectedCode:  http.StatusConflict,
			expectedError: "login already taken",
		},
		{
			name:          "Invalid request body",
			body:          `{invalid json`,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "invalid body: malformed JSON",
		},
		{
			name:         "Short password",
			body:         `{"login":"newuser","password":"short"}`,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Error generating token",
			body: `{"login":"newuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", domain.Role("")).Return(customer, nil)
				service.EXPECT().GenerateToken(customer).Return("", errors.New("token generation error"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Error generating token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()

			handler.Register(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedToken, rr.Header().Get("Authorization"))
			if tt.expectedError != "" {
				var resp utils.Response
				err := json.NewDecoder(rr.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedError, resp.Message)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	handler, service := NewMock(t)
	user := &domain.User{ID: 1, Login: "testuser", Role: domain.RoleCustomer}

	tests := []struct {
		name          string
		body          string
		prepareMock   func()
		expectedCode  int
		expectedError string
	}{
		{
			name: "Successful login",
			body: `{"login":"testuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Authenticate(context.Background(), "testuser", "password123").Return(user, nil)
				service.EXPECT().GenerateToken(user).Return("some-jwt-token", nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Invalid credentials",
			body: `{"login":"testuser","password":"wrongpassword"}`,
			prepareMock: func() {
				service.EXPECT().Authenticate(context.Background(), "testuser", "wrongpassword").Return(nil, domain.ErrInvalidCredentials)
			},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "invalid credentials",
		},
		{
			name:         "Invalid request body",
			body:         `{invalid json`,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Storage failure",
			body: `{"login":"testuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Authenticate(context.Background(), "testuser", "password123").Return(nil, errors.New("conn reset"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()

			handler.Login(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedError != "" {
				var resp utils.Response
				err := json.NewDecoder(rr.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedError, resp.Message)
			}
		})
	}
}
