// Package segment implements owner-scoped segments: named rule sets that
// select merged signals by upload date, taxonomy code and KPI thresholds.
//
// Apply is the filter itself and has no dependencies. The Service layer
// depends on the Repository interface in repository.go for segment storage
// and on SignalReader for the merged signals a segment is evaluated against.
// It never imports net/http or database/sql directly.
package segment
