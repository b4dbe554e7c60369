package internal

type BatchStatus string

const (
	BatchStaged      BatchStatus = "staged"
	BatchTransformed BatchStatus = "transformed"
)

// ImportBatch is created once per uploaded file, before any row is processed,
// and finalized exactly once with the row counters.
type ImportBatch struct {
	ID              int64
	BatchNo         string
	ReportType      string
	MappingVersion  string
	FileName        string
	HeaderSignature string
	Headers         []string
	UnknownHeaders  []string
	Status          BatchStatus
	StagedCount     int
	CanonicalCount  int
	ErrorCount      int
	CreatedAt       string
	UpdatedAt       string
}

// StagingRow keeps the full-fidelity raw record of one non-blank input row.
// Fields holds canonical field -> raw string; Extra holds original header ->
// verbatim cell value for unrecognized columns (nil when there are none).
type StagingRow struct {
	ID       int64
	BatchID  int64
	RowIndex int
	Fields   map[string]string
	Extra    map[string]string
}

// PartsSalesLine is the canonical projection of one validated row, keyed by
// (BranchCode, CheckoutNo, ItemID) across all batches.
type PartsSalesLine struct {
	ID           int64
	BatchID      int64
	BranchCode   string
	CheckoutNo   string
	ItemID       string
	WorkorderNo  *string
	WorkorderKey *string
	PartNo       string
	PartName     *string
	Quantity     *float64
	SaleAmount   *float64
	CostAmount   *float64
	Advisor      *string
	SalesName    *string
}

type ImportSummary struct {
	BatchID         int64    `json:"batchId"`
	BatchNo         string   `json:"batchNo"`
	StagedCount     int      `json:"stagedCount"`
	CanonicalCount  int      `json:"canonicalCount"`
	ErrorCount      int      `json:"errorCount"`
	MissingRequired []string `json:"missingRequired"`
	UnknownColumns  []string `json:"unknownColumns"`
}

// PartRecord is one entry of the upstream DMS parts master, used to backfill
// part names on canonical lines.
type PartRecord struct {
	PartNo    string
	PartName  string
	Unit      *string
	Price     *float64
	UpdatedAt *string
	RawJSON   string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
