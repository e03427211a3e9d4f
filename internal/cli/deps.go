package cli

import (
	"context"
	"fmt"

	"github.com/umarmk/mcp-server/internal/audit"
	"github.com/umarmk/mcp-server/internal/config"
	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/database/mysql"
	"github.com/umarmk/mcp-server/internal/database/postgres"
	"github.com/umarmk/mcp-server/internal/filestore/minio"
	"github.com/umarmk/mcp-server/internal/logger"
)

// openPool connects the pool for the configured driver. The caller closes it.
func openPool(ctx context.Context, cfg *config.Config) (database.Pool, error) {
	dc := cfg.DatabaseConfig()
	switch dc.Driver {
	case database.DriverPostgres:
		p, err := postgres.New(ctx, dc)
		if err != nil {
			return nil, err
		}
		return p, nil
	case database.DriverMySQL:
		p, err := mysql.New(ctx, dc)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", dc.Driver)
	}
}

// openRecorder builds the audit recorder, archiving to object storage when
// a bucket is configured. The returned close func is never nil.
func openRecorder(ctx context.Context, cfg *config.Config, log *logger.Logger) (*audit.Recorder, func(), error) {
	storeCfg := cfg.AuditStoreConfig()
	if storeCfg == nil {
		return audit.NewRecorder(log), func() {}, nil
	}

	store, err := minio.New(ctx, storeCfg)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.WarnWith("failed to close audit store", err, nil)
		}
	}

	rec := audit.NewRecorder(log, audit.WithArchive(store, cfg.Audit.Bucket))
	if err := rec.Prepare(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return rec, closeStore, nil
}
