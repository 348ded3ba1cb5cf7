// Package sources opens the Persistence backend named by PERSISTENCE_BACKEND.
package sources

import (
	"context"
	"fmt"

	"chatdesk/chatdesk/config"
	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/sources/file"
	"chatdesk/chatdesk/sources/psql"
	"chatdesk/chatdesk/sources/psql/dao"
	"chatdesk/chatdesk/sources/sqlite"
	"chatdesk/chatdesk/sources/storage"
	"chatdesk/chatdesk/utils/logging"

	"go.uber.org/zap"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMinIO    = "minio"
	BackendMemory   = "memory"
)

// Closer releases whatever the backend holds open.
type Closer func() error

func noClose() error { return nil }

// New returns the configured backend and a func that closes it.
func New(ctx context.Context, cfg config.Config) (sessions.Persistence, Closer, error) {
	backend := cfg.PersistenceBackend
	if backend == "" {
		backend = BackendFile
	}
	logging.AppLogger.Info("Opening persistence", zap.String("backend", backend))

	switch backend {
	case BackendFile:
		fs, err := file.New(cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		return fs, noClose, nil

	case BackendPostgres, "psql":
		db, err := psql.NewDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return dao.NewChatStateDAO(db.DB), db.Close, nil

	case BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case BackendMinIO:
		store, err := storage.NewMinIOStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, noClose, nil

	case BackendMemory:
		return sessions.NewMemoryPersistence(nil), noClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", backend)
	}
}
