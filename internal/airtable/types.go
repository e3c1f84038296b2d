package airtable

import "time"

// Table is one table in the external base schema.
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is one column of a table schema.
type Field struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Record is one row from the external source.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// RecordPage is one page of records. Offset is the opaque token for the next
// page; empty means the table is drained.
type RecordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// tableListResponse wraps the schema endpoint body.
type tableListResponse struct {
	Tables []Table `json:"tables"`
}
