package pipeline

import (
	"errors"

	"github.com/google/uuid"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/schema"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

// ErrNoDataRows is the only hard failure of an import: a header-only or empty
// sheet aborts before any record is created.
var ErrNoDataRows = errors.New("sheet has no data rows")

type ImportService struct {
	db    *storage.DB
	cfg   config.Config
	table *schema.AliasTable
}

func NewImportService(db *storage.DB, cfg config.Config) (*ImportService, error) {
	table, err := schema.LoadAliases(cfg.MappingFile)
	if err != nil {
		return nil, err
	}
	return &ImportService{db: db, cfg: cfg, table: table}, nil
}

// ImportFile runs one workbook through the pipeline: header mapping, per-row
// decode and validation, unconditional staging, conditional canonical upsert,
// and batch finalization. Row problems are soft failures reflected in the
// counters; they never abort the batch.
func (s *ImportService) ImportFile(fileName string, blob []byte) (internal.ImportSummary, error) {
	rows, err := SheetRows(blob)
	if err != nil {
		return internal.ImportSummary{}, err
	}
	if len(rows) < 2 {
		return internal.ImportSummary{}, ErrNoDataRows
	}

	hm := MapHeaders(rows[0], s.table)
	missing := MissingRequired(hm)
	unknown := hm.UnknownHeaders()

	batchNo := uuid.NewString()

	// The batch record exists before row processing starts, so a crash mid-way
	// leaves a recoverable staged batch rather than orphaned rows.
	batchID, err := s.db.CreateBatch(internal.ImportBatch{
		BatchNo:         batchNo,
		ReportType:      s.cfg.ReportType,
		MappingVersion:  s.cfg.MappingVersion,
		FileName:        fileName,
		HeaderSignature: Signature(hm.Normalized),
		Headers:         rows[0],
		UnknownHeaders:  unknown,
		Status:          internal.BatchStaged,
	})
	if err != nil {
		return internal.ImportSummary{}, err
	}

	summary := internal.ImportSummary{
		BatchID:         batchID,
		BatchNo:         batchNo,
		MissingRequired: missing,
		UnknownColumns:  unknown,
	}

	for i, cells := range rows[1:] {
		decoded, ok := DecodeRow(cells, hm)
		if !ok {
			continue
		}

		summary.StagedCount++
		if err := s.db.CreateStagingRow(batchID, i+1, decoded.Fields, decoded.Extra); err != nil {
			return internal.ImportSummary{}, err
		}

		if len(missing) > 0 {
			summary.ErrorCount++
			continue
		}
		line, err := BuildLine(decoded.Fields)
		if err != nil {
			summary.ErrorCount++
			continue
		}
		line.BatchID = batchID
		s.fillPartName(&line)
		if err := s.db.UpsertLine(line); err != nil {
			return internal.ImportSummary{}, err
		}
		summary.CanonicalCount++
	}

	status := internal.BatchStaged
	if summary.ErrorCount == 0 {
		status = internal.BatchTransformed
	}
	if err := s.db.FinalizeBatch(batchID, status, summary.StagedCount, summary.CanonicalCount, summary.ErrorCount); err != nil {
		return internal.ImportSummary{}, err
	}

	return summary, nil
}

// fillPartName backfills a blank part name from the parts master. Enrichment
// only; validation outcome and counters are already settled.
func (s *ImportService) fillPartName(line *internal.PartsSalesLine) {
	if line.PartName != nil {
		return
	}
	part, err := s.db.GetPart(line.PartNo)
	if err != nil || part == nil {
		return
	}
	line.PartName = &part.PartName
}
