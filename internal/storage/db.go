package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/qinyiguo/DMS2.0/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping backs the liveness probe.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS batches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchNo TEXT NOT NULL UNIQUE,
  reportType TEXT NOT NULL,
  mappingVersion TEXT NOT NULL,
  fileName TEXT,
  headerSignature TEXT NOT NULL,
  headersJson TEXT NOT NULL,
  unknownHeadersJson TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'staged',
  stagedCount INTEGER NOT NULL DEFAULT 0,
  canonicalCount INTEGER NOT NULL DEFAULT 0,
  errorCount INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_batches_signature ON batches(headerSignature);

CREATE TABLE IF NOT EXISTS staging_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId INTEGER NOT NULL,
  rowIndex INTEGER NOT NULL,
  fieldsJson TEXT NOT NULL,
  extraJson TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(batchId) REFERENCES batches(id)
);
CREATE INDEX IF NOT EXISTS idx_staging_batch ON staging_rows(batchId);

CREATE TABLE IF NOT EXISTS parts_sales_lines (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId INTEGER NOT NULL,
  branchCode TEXT NOT NULL,
  checkoutNo TEXT NOT NULL,
  itemId TEXT NOT NULL,
  workorderNo TEXT,
  workorderKey TEXT,
  partNo TEXT NOT NULL,
  partName TEXT,
  quantity REAL,
  saleAmount REAL,
  costAmount REAL,
  advisor TEXT,
  salesName TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(branchCode, checkoutNo, itemId),
  FOREIGN KEY(batchId) REFERENCES batches(id)
);
CREATE INDEX IF NOT EXISTS idx_lines_batch ON parts_sales_lines(batchId);
CREATE INDEX IF NOT EXISTS idx_lines_workorder ON parts_sales_lines(workorderKey);

CREATE TABLE IF NOT EXISTS parts (
  partNo TEXT PRIMARY KEY,
  partName TEXT NOT NULL,
  unit TEXT,
  price REAL,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// CreateBatch inserts the batch in its initial staged state and returns the
// assigned id. Counters are finalized later by FinalizeBatch.
func (d *DB) CreateBatch(batch internal.ImportBatch) (int64, error) {
	headersJSON, _ := json.Marshal(batch.Headers)
	unknownJSON, _ := json.Marshal(batch.UnknownHeaders)
	result, err := d.conn.Exec(`
INSERT INTO batches (batchNo, reportType, mappingVersion, fileName, headerSignature, headersJson, unknownHeadersJson, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, batch.BatchNo, batch.ReportType, batch.MappingVersion, batch.FileName, batch.HeaderSignature, string(headersJSON), string(unknownJSON), string(batch.Status))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinalizeBatch records the terminal status and counters exactly once.
func (d *DB) FinalizeBatch(batchID int64, status internal.BatchStatus, staged, canonical, errCount int) error {
	_, err := d.conn.Exec(`
UPDATE batches SET status = ?, stagedCount = ?, canonicalCount = ?, errorCount = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, string(status), staged, canonical, errCount, batchID)
	return err
}

func (d *DB) GetBatch(batchID int64) (*internal.ImportBatch, error) {
	var b internal.ImportBatch
	var status, headersJSON, unknownJSON string
	err := d.conn.QueryRow(`
SELECT id, batchNo, reportType, mappingVersion, fileName, headerSignature, headersJson, unknownHeadersJson,
       status, stagedCount, canonicalCount, errorCount, createdAt, updatedAt
FROM batches WHERE id = ?
`, batchID).Scan(
		&b.ID, &b.BatchNo, &b.ReportType, &b.MappingVersion, &b.FileName, &b.HeaderSignature, &headersJSON, &unknownJSON,
		&status, &b.StagedCount, &b.CanonicalCount, &b.ErrorCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Status = internal.BatchStatus(status)
	_ = json.Unmarshal([]byte(headersJSON), &b.Headers)
	_ = json.Unmarshal([]byte(unknownJSON), &b.UnknownHeaders)
	return &b, nil
}

// ListBatchesBySignature reports earlier batches sharing the same header
// layout, newest first.
func (d *DB) ListBatchesBySignature(signature string, limit int) ([]int64, error) {
	rows, err := d.conn.Query(`
SELECT id FROM batches WHERE headerSignature = ? ORDER BY id DESC LIMIT ?
`, signature, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateStagingRow writes one immutable audit row. Extra is omitted from the
// record entirely when the row carried no unknown columns.
func (d *DB) CreateStagingRow(batchID int64, rowIndex int, fields, extra map[string]string) error {
	fieldsJSON, _ := json.Marshal(fields)
	var extraJSON *string
	if len(extra) > 0 {
		blob, _ := json.Marshal(extra)
		s := string(blob)
		extraJSON = &s
	}
	_, err := d.conn.Exec(`
INSERT INTO staging_rows (batchId, rowIndex, fieldsJson, extraJson)
VALUES (?, ?, ?, ?)
`, batchID, rowIndex, string(fieldsJSON), extraJSON)
	return err
}

func (d *DB) ListStagingRows(batchID int64) ([]internal.StagingRow, error) {
	rows, err := d.conn.Query(`
SELECT id, batchId, rowIndex, fieldsJson, extraJson
FROM staging_rows WHERE batchId = ? ORDER BY rowIndex ASC
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StagingRow
	for rows.Next() {
		var row internal.StagingRow
		var fieldsJSON string
		var extraJSON *string
		if err := rows.Scan(&row.ID, &row.BatchID, &row.RowIndex, &fieldsJSON, &extraJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(fieldsJSON), &row.Fields)
		if extraJSON != nil {
			_ = json.Unmarshal([]byte(*extraJSON), &row.Extra)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertLine creates or replaces the canonical row for its business key. The
// statement is atomic per key; a later import of the same key overwrites the
// earlier values and re-homes the row to the importing batch.
func (d *DB) UpsertLine(line internal.PartsSalesLine) error {
	_, err := d.conn.Exec(`
INSERT INTO parts_sales_lines (
  batchId, branchCode, checkoutNo, itemId, workorderNo, workorderKey,
  partNo, partName, quantity, saleAmount, costAmount, advisor, salesName
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(branchCode, checkoutNo, itemId) DO UPDATE SET
  batchId=excluded.batchId,
  workorderNo=excluded.workorderNo,
  workorderKey=excluded.workorderKey,
  partNo=excluded.partNo,
  partName=excluded.partName,
  quantity=excluded.quantity,
  saleAmount=excluded.saleAmount,
  costAmount=excluded.costAmount,
  advisor=excluded.advisor,
  salesName=excluded.salesName,
  updatedAt=CURRENT_TIMESTAMP
`, line.BatchID, line.BranchCode, line.CheckoutNo, line.ItemID, line.WorkorderNo, line.WorkorderKey,
		line.PartNo, line.PartName, line.Quantity, line.SaleAmount, line.CostAmount, line.Advisor, line.SalesName)
	return err
}

func (d *DB) GetLineByBusinessKey(branchCode, checkoutNo, itemID string) (*internal.PartsSalesLine, error) {
	var line internal.PartsSalesLine
	err := d.conn.QueryRow(`
SELECT id, batchId, branchCode, checkoutNo, itemId, workorderNo, workorderKey,
       partNo, partName, quantity, saleAmount, costAmount, advisor, salesName
FROM parts_sales_lines WHERE branchCode = ? AND checkoutNo = ? AND itemId = ?
`, branchCode, checkoutNo, itemID).Scan(
		&line.ID, &line.BatchID, &line.BranchCode, &line.CheckoutNo, &line.ItemID, &line.WorkorderNo, &line.WorkorderKey,
		&line.PartNo, &line.PartName, &line.Quantity, &line.SaleAmount, &line.CostAmount, &line.Advisor, &line.SalesName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (d *DB) ListLinesByBatch(batchID int64) ([]internal.PartsSalesLine, error) {
	rows, err := d.conn.Query(`
SELECT id, batchId, branchCode, checkoutNo, itemId, workorderNo, workorderKey,
       partNo, partName, quantity, saleAmount, costAmount, advisor, salesName
FROM parts_sales_lines WHERE batchId = ? ORDER BY id ASC
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PartsSalesLine
	for rows.Next() {
		var line internal.PartsSalesLine
		if err := rows.Scan(
			&line.ID, &line.BatchID, &line.BranchCode, &line.CheckoutNo, &line.ItemID, &line.WorkorderNo, &line.WorkorderKey,
			&line.PartNo, &line.PartName, &line.Quantity, &line.SaleAmount, &line.CostAmount, &line.Advisor, &line.SalesName,
		); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (d *DB) CountLines() (int, error) {
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM parts_sales_lines`).Scan(&count)
	return count, err
}

func (d *DB) UpsertParts(parts []internal.PartRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO parts (partNo, partName, unit, price, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(partNo) DO UPDATE SET
  partName=excluded.partName,
  unit=excluded.unit,
  price=excluded.price,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range parts {
		if _, err := stmt.Exec(p.PartNo, p.PartName, p.Unit, p.Price, p.UpdatedAt, p.RawJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetPart(partNo string) (*internal.PartRecord, error) {
	var p internal.PartRecord
	err := d.conn.QueryRow(`
SELECT partNo, partName, unit, price, updatedAt, raw_json FROM parts WHERE partNo = ?
`, partNo).Scan(&p.PartNo, &p.PartName, &p.Unit, &p.Price, &p.UpdatedAt, &p.RawJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
