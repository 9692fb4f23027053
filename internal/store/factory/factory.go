// Package factory builds a store backend from configuration.
package factory

import (
	"fmt"

	"github.com/framepoint/annotate/internal/config"
	"github.com/framepoint/annotate/internal/store"
	"github.com/framepoint/annotate/internal/store/memory"
	sqlitestore "github.com/framepoint/annotate/internal/store/sqlite"
	"github.com/framepoint/annotate/internal/store/ws"
)

// New creates a store backend based on configuration.
func New(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlitestore.New(sqlitestore.Config{Path: cfg.SQLite.Path})
	case "ws":
		return ws.New(ws.Config{URL: cfg.WS.URL, Secret: cfg.WS.Secret}), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
