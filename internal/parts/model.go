package parts

import "time"

// Part is one imported input row awaiting upsert. The processed flag and
// run counter make reruns resumable: a rerun only sees rows not yet flagged.
// Seq is assigned by the store on insert and defines input order; created_at
// timestamps can tie within a bulk load.
type Part struct {
	ID            string
	Seq           int64
	ExternalKey   string
	DisplayName   string
	Unit          string
	PurchasePrice float64
	JobType       string
	Processed     bool
	RunCount      int
	CreatedAt     time.Time
}
