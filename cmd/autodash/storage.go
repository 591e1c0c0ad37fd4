package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/storage"
	"github.com/autodash/simulator/internal/storage/memory"
	pgstorage "github.com/autodash/simulator/internal/storage/postgres"
	sqlitestorage "github.com/autodash/simulator/internal/storage/sqlite"
	wsstorage "github.com/autodash/simulator/internal/storage/websocket"
)

// streamPath is appended to api.serverUrl when no websocket URL is configured.
const streamPath = "/api/v1/stream"

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, projector *geo.Projector, start time.Time) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Logger:    logger,
			Projector: projector,
		}), nil

	case "sqlite":
		dumpPath := filepath.Join(storageCfg.SQLite.OutputDir, fmt.Sprintf("%s_%s.db", appName, start.Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, logger, projector)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		wsURL := storageCfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(config.GetString("api.serverUrl")) + streamPath
		}
		secret := storageCfg.WebSocket.Secret
		if secret == "" {
			secret = config.GetString("api.apiKey")
		}
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:        wsURL,
			Secret:     secret,
			AckTimeout: storageCfg.WebSocket.AckTimeout,
			Logger:     logger,
		}), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory, projector), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
