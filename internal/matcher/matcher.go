// Package matcher ranks enrolled students by similarity to an input face
// descriptor. Matching is a pure linear scan over a cache snapshot: the
// working set is a single course roster (tens to low hundreds of students),
// so exact search is both adequate and keeps results deterministic.
package matcher

import (
	"sort"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/descriptors"
)

// DefaultTopN is the number of ranked candidates returned when the caller
// does not specify one.
const DefaultTopN = 3

// Candidate is one ranked match result. Never persisted.
type Candidate struct {
	StudentID    string  `json:"student_id"`
	DisplayName  string  `json:"display_name"`
	ExternalCode string  `json:"external_code"`
	Score        float64 `json:"score"`
	Qualified    bool    `json:"qualified"`
}

// Options control filtering and result size.
type Options struct {
	Accept float64 // minimum score, inclusive
	TopN   int     // maximum candidates returned, DefaultTopN if zero
}

// Match scores the input descriptor against every stored descriptor of every
// candidate student present in the snapshot, keeps the best score per
// student, drops students below the acceptance floor and returns the top
// results ordered by descending score (ascending student id on ties).
//
// Match performs no I/O and is safe for concurrent use: the snapshot is
// immutable for the duration of the call.
func Match(snap *descriptors.Snapshot, input database.Descriptor, candidateIDs []string, opts Options) []Candidate {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	results := make([]Candidate, 0, len(candidateIDs))
	if snap == nil || len(input) == 0 {
		return results
	}

	for _, id := range candidateIDs {
		entry := snap.Get(id)
		if entry == nil {
			continue
		}

		best := -1.0
		for _, stored := range entry.Descriptors {
			if len(stored) != len(input) {
				// Malformed enrollment data must not abort
				// recognition for other students.
				continue
			}
			if score := database.Score(database.SquaredEuclidean(input, stored)); score > best {
				best = score
			}
		}

		if best < 0 || best < opts.Accept {
			continue
		}
		results = append(results, Candidate{
			StudentID:    entry.StudentID,
			DisplayName:  entry.DisplayName,
			ExternalCode: entry.ExternalCode,
			Score:        best,
			Qualified:    true,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].StudentID < results[j].StudentID
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results
}
