package service

import (
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/repo"
	pkgauth "github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/clients"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)

	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer conn.Close()

	cache, _ := redismock.NewClientMock()
	txManager := pg.NewMockTXManager(ctrl)
	cfg := &config.Config{Currency: "INR"}

	services := New(cfg, Deps{
		Repos:     repo.New(conn, txManager),
		TxManager: txManager,
		Gateway:   gateway.New(cfg, clients.NewHTTPClient()),
		Cache:     cache,
		Events:    analytics.NewMockEmitter(ctrl),
		Hash:      pkgauth.NewMockHashServiceInterface(ctrl),
		JWT:       pkgauth.NewMockJWTServiceInterface(ctrl),
	})

	assert.NotNil(t, services.AuthService)
	assert.NotNil(t, services.WalletService)
	assert.NotNil(t, services.TicketService)
	assert.NotNil(t, services.OrderService)
	assert.NotNil(t, services.WebhookService)
	assert.Same(t, services.TicketService, services.TicketExpiry)
}
