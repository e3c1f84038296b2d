package sync

// Per-table sync statuses.
const (
	TableStatusCompleted = "completed" // every record stored
	TableStatusPartial   = "partial"   // some records stored, some failed
	TableStatusFailed    = "failed"    // nothing stored
)

// TableResult is the outcome of syncing one table.
type TableResult struct {
	Name        string `json:"name"`
	SyncedCount int    `json:"synced_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// SyncResult aggregates one sync run. Success is source-level, not
// all-or-nothing: true iff at least one record synced.
type SyncResult struct {
	Success      bool          `json:"success"`
	Tables       []TableResult `json:"tables"`
	TotalRecords int           `json:"total_records"`
	Errors       []string      `json:"errors,omitempty"`
}

// PushRequest creates or updates one external record. An empty RecordID
// means create.
type PushRequest struct {
	BaseID   string         `json:"base_id"`
	TableID  string         `json:"table_id"`
	RecordID string         `json:"record_id,omitempty"`
	Fields   map[string]any `json:"fields"`
}

// PushResult is returned instead of an error since pushes are interactive.
// Retry, if any, belongs to the caller.
type PushResult struct {
	Success  bool   `json:"success"`
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReembedResult is the outcome of regenerating one table's embeddings.
type ReembedResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}
