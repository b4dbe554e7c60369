package catalog

import (
	"context"
	"time"

	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

// SyncService mirrors the upstream parts master into the local parts table so
// imports can backfill part names without a network round trip per row.
type SyncService struct {
	db     *storage.DB
	client *Client
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg)}
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	parts, err := s.client.GetPartsScrollAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertParts(parts); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("parts.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	return len(parts), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context, mode string) (int, error) {
	parts, err := s.client.GetPartsIncremental(ctx, mode)
	if err != nil {
		return 0, err
	}
	if len(parts) > 0 {
		if err := s.db.UpsertParts(parts); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("parts.last_incremental_sync."+mode, time.Now().UTC().Format(time.RFC3339))
	return len(parts), nil
}
