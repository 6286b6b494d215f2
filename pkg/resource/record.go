// Package resource provides resource records and the requirement expressions
// evaluated against them.
//
// A resource job does not pass or fail; it emits one or more flat key/value
// records (per-CPU facts, per-device facts, and so on). Other jobs gate their
// readiness on boolean expressions over those records, such as
// "cpu.cores > 2". The Store collects records per producing job, and
// Expression evaluates requirement predicates against them.
package resource

import "sort"

// Record is one flat resource record: field name to value.
//
// Values are kept as strings, matching how resource jobs emit them on
// stdout. The expression evaluator coerces numeric-looking values to numbers
// before binding them, so comparisons like "cpu.cores > 2" behave as
// expected.
type Record map[string]string

// Store maps resource-producing job ids to their ordered record sequences.
//
// An empty sequence means the producing job has not produced data yet.
// The Store is mutated only by the execution driver, strictly between job
// runs, so it carries no locks.
type Store struct {
	records map[string][]Record
}

// NewStore returns an empty record store.
func NewStore() *Store {
	return &Store{records: make(map[string][]Record)}
}

// Add appends records produced by jobID, preserving order.
func (s *Store) Add(jobID string, recs ...Record) {
	s.records[jobID] = append(s.records[jobID], recs...)
}

// Replace discards any existing records for jobID and stores recs instead.
// A rerun of a resource job replaces its previous output wholesale.
func (s *Store) Replace(jobID string, recs []Record) {
	s.records[jobID] = append([]Record(nil), recs...)
}

// Records returns a copy of the ordered record sequence for jobID.
// An empty result means the job has not produced any records.
func (s *Store) Records(jobID string) []Record {
	return append([]Record(nil), s.records[jobID]...)
}

// Has reports whether jobID has produced at least one record.
func (s *Store) Has(jobID string) bool {
	return len(s.records[jobID]) > 0
}

// Producers returns the sorted ids of jobs that have produced records.
func (s *Store) Producers() []string {
	ids := make([]string, 0, len(s.records))
	for id, recs := range s.records {
		if len(recs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
