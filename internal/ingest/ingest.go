package ingest

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/pipeline"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

// Service turns stored report mail into import batches: each spreadsheet
// attachment runs through the same import pipeline as an HTTP upload.
type Service struct {
	db  *storage.DB
	imp *pipeline.ImportService
}

func NewService(db *storage.DB, imp *pipeline.ImportService) *Service {
	return &Service{db: db, imp: imp}
}

type MailImportResult struct {
	EmailID int
	Batches []internal.ImportSummary
	Skipped int
}

// ProcessPending imports all fetched mail up to limit, optionally filtered by
// provider. A failing message stops the run so it can be retried.
func (s *Service) ProcessPending(limit int, provider string) ([]MailImportResult, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return nil, err
	}

	var out []MailImportResult
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Service) ProcessByProviderMessageID(provider, messageID string) (MailImportResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return MailImportResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessEmail imports every spreadsheet attachment of one message. A message
// whose attachments all turn out empty is marked skipped, not failed.
func (s *Service) ProcessEmail(email internal.EmailRow) (MailImportResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return MailImportResult{}, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailImportResult{}, err
	}

	result := MailImportResult{EmailID: email.ID}
	for _, att := range env.Attachments {
		if !isSpreadsheet(att.FileName) {
			continue
		}
		summary, err := s.imp.ImportFile(att.FileName, att.Content)
		if errors.Is(err, pipeline.ErrNoDataRows) {
			result.Skipped++
			continue
		}
		if err != nil {
			return MailImportResult{}, err
		}
		result.Batches = append(result.Batches, summary)
	}

	status := "skipped"
	if len(result.Batches) > 0 {
		status = "imported"
	}
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return MailImportResult{}, err
	}

	return result, nil
}

func isSpreadsheet(fileName string) bool {
	lower := strings.ToLower(strings.TrimSpace(fileName))
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls")
}
