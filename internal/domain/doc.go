// Package domain defines the core record types shared across packages.
//
// These types have zero external dependencies and contain no business logic
// beyond field access helpers. Every package (store, reconcile, segment,
// classify, api) imports domain types rather than defining its own.
//
// Optional values are modeled as absent rather than as sentinel strings:
// metrics are *float64 (nil means the source did not supply a usable number)
// and optional codes and labels are empty strings.
//
// Organization:
//
//	classification.go: ClassificationRecord, ValidationSummary
//	attribution.go   : AttributionRecord, Metrics
//	signal.go        : MergedSignal and field access by name
//	segment.go       : Segment, RuleSet
package domain
