package change

import (
	"fmt"
	"time"
)

// Operation is the kind of database mutation a Record describes
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Record describes one database mutation. It is immutable after creation
// and travels as UTF-8 JSON on the change topic.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Operation Operation      `json:"operation"`
	Table     string         `json:"table"`
	Data      map[string]any `json:"data"`
	UserID    *int64         `json:"userId"`
}

// NewRecord builds a Record stamped with the capture time. userID may be
// nil when no authenticated user triggered the mutation.
func NewRecord(op Operation, table string, data map[string]any, userID *int64) Record {
	return Record{
		Timestamp: time.Now().UTC(),
		Operation: op,
		Table:     table,
		Data:      data,
		UserID:    userID,
	}
}

// Key returns the partition key for a record: table plus capture time, so
// changes to the same table spread across partitions over time. No ordering
// is promised across tables.
func (r Record) Key() string {
	return fmt.Sprintf("%s-%d", r.Table, r.Timestamp.UnixMilli())
}
