package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/prudhvinik1/sheetsync/internal/config"
	"github.com/prudhvinik1/sheetsync/internal/database"
	"github.com/prudhvinik1/sheetsync/internal/repositories"
	"github.com/prudhvinik1/sheetsync/internal/services"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
)

// syncEnv is a SyncService built from the environment, without the primary
// store. When REDIS_URL is set the token cache and key locks are shared with
// the server.
type syncEnv struct {
	service  *services.SyncService
	provider *sheets.ServiceAccountTokenProvider
	close    func()
}

func newSyncEnv(ctx context.Context) (*syncEnv, error) {
	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, err
	}
	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: sheetsCfg.HTTPTimeout}
	provider := sheets.NewServiceAccountTokenProvider(sheetsCfg.Credentials(), httpClient)
	client := sheets.NewClient(httpClient, sheetsCfg.BaseURL, sheetsCfg.SpreadsheetID)

	var (
		cache  sheets.TokenCache
		locker repositories.KeyLocker
		closer = func() {}
	)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		cache = repositories.NewRedisTokenCache(redisClient)
		locker = repositories.NewRedisKeyLocker(redisClient, syncCfg.LockTTL)
		closer = func() { redisClient.Close() }
	}

	tokens := sheets.NewCachingTokenProvider(provider, cache, provider.ClientEmail(), slog.Default())
	service := services.NewSyncService(tokens, client, locker, nil, syncCfg.ImportChunkSize, slog.Default())

	return &syncEnv{service: service, provider: provider, close: closer}, nil
}
