package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/connectors"
	gmailconnector "github.com/qinyiguo/DMS2.0/internal/connectors/gmail"
	imapconnector "github.com/qinyiguo/DMS2.0/internal/connectors/imap"
	"github.com/qinyiguo/DMS2.0/internal/ingest"
	"github.com/qinyiguo/DMS2.0/internal/pipeline"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

// Service polls the report mailbox and imports spreadsheet attachments as
// they arrive.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	imp, err := pipeline.NewImportService(s.db, s.cfg)
	if err != nil {
		return err
	}
	results, err := ingest.NewService(s.db, imp).ProcessPending(s.cfg.MailListenerBatch, provider)
	if err != nil {
		return err
	}

	batches := 0
	for _, res := range results {
		batches += len(res.Batches)
		for _, summary := range res.Batches {
			fmt.Printf("imported batch=%d staged=%d canonical=%d errors=%d\n",
				summary.BatchID, summary.StagedCount, summary.CanonicalCount, summary.ErrorCount)
		}
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d emails=%d batches=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, len(results), batches)
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
