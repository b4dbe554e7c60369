package ingest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/pipeline"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	imp, err := pipeline.NewImportService(db, config.Config{ReportType: "parts_sales", MappingVersion: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(db, imp), db
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(sheet, axis, cell); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// rawMail assembles a multipart message carrying one attachment.
func rawMail(fileName string, attachment []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: dms@example.com\r\n")
	fmt.Fprintf(&buf, "Subject: daily report\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=\"b1\"\r\n\r\n")
	fmt.Fprintf(&buf, "--b1\r\nContent-Type: text/plain\r\n\r\nsee attached\r\n")
	fmt.Fprintf(&buf, "--b1\r\n")
	fmt.Fprintf(&buf, "Content-Type: application/octet-stream; name=%q\r\n", fileName)
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n", fileName)
	fmt.Fprintf(&buf, "Content-Transfer-Encoding: base64\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n", base64.StdEncoding.EncodeToString(attachment))
	fmt.Fprintf(&buf, "--b1--\r\n")
	return buf.Bytes()
}

func storeMail(t *testing.T, db *storage.DB, messageID string, raw []byte) internal.EmailRow {
	t.Helper()
	path := filepath.Join(t.TempDir(), messageID+".eml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	row, err := db.UpsertEmail("imap", messageID, "daily report", "dms@example.com", "2026-01-01T00:00:00Z", "hash", path, "fetched")
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func TestProcessEmailImportsAttachment(t *testing.T) {
	svc, db := newTestService(t)

	blob := workbook(t, [][]string{
		{"據點", "結帳單號", "項目ID", "料號", "數量"},
		{"A01", "C100", "1", "P-9", "5"},
	})
	email := storeMail(t, db, "m1", rawMail("sales.xlsx", blob))

	result, err := svc.ProcessEmail(email)
	if err != nil {
		t.Fatalf("ProcessEmail: %v", err)
	}
	if len(result.Batches) != 1 {
		t.Fatalf("batches = %d", len(result.Batches))
	}
	if result.Batches[0].CanonicalCount != 1 {
		t.Errorf("summary = %+v", result.Batches[0])
	}

	updated, _ := db.MustEmailByProviderMessageID("imap", "m1")
	if updated.Status != "imported" {
		t.Errorf("status = %s, want imported", updated.Status)
	}
}

func TestProcessEmailSkipsEmptyAttachment(t *testing.T) {
	svc, db := newTestService(t)

	blob := workbook(t, [][]string{{"據點", "結帳單號", "項目ID", "料號"}})
	email := storeMail(t, db, "m2", rawMail("empty.xlsx", blob))

	result, err := svc.ProcessEmail(email)
	if err != nil {
		t.Fatalf("ProcessEmail: %v", err)
	}
	if len(result.Batches) != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}

	updated, _ := db.MustEmailByProviderMessageID("imap", "m2")
	if updated.Status != "skipped" {
		t.Errorf("status = %s, want skipped", updated.Status)
	}
}

func TestProcessEmailIgnoresNonSpreadsheet(t *testing.T) {
	svc, db := newTestService(t)

	email := storeMail(t, db, "m3", rawMail("notes.pdf", []byte("%PDF-fake")))

	result, err := svc.ProcessEmail(email)
	if err != nil {
		t.Fatalf("ProcessEmail: %v", err)
	}
	if len(result.Batches) != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestProcessPendingFiltersProvider(t *testing.T) {
	svc, db := newTestService(t)

	blob := workbook(t, [][]string{
		{"據點", "結帳單號", "項目ID", "料號"},
		{"A01", "C100", "1", "P-9"},
	})
	storeMail(t, db, "m4", rawMail("sales.xlsx", blob))

	results, err := svc.ProcessPending(10, "gmail")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("gmail filter should skip imap mail: %+v", results)
	}

	results, err = svc.ProcessPending(10, "imap")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}
