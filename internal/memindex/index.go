// Package memindex holds the per-persona similarity indexes over self-authored
// interactions. Each index is an exact, flat nearest-neighbour structure that
// is persisted as a snapshot file and can be rebuilt from the interaction rows.
package memindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is one indexed interaction.
type Entry struct {
	ID        uuid.UUID
	Seq       int64
	Subreddit string
	Vector    []float32
}

// Hit is a search result. Score is 1/(1+d²) for squared Euclidean distance d².
type Hit struct {
	ID    uuid.UUID
	Seq   int64
	Score float64
}

// Index is not safe for concurrent use; the Manager guards each one.
type Index struct {
	dim     int
	entries []Entry
	pos     map[uuid.UUID]int
}

func New() *Index {
	return &Index{pos: make(map[uuid.UUID]int)}
}

func (ix *Index) Len() int { return len(ix.entries) }

// Dim is the vector width fixed by the first entry, or 0 for an empty index.
func (ix *Index) Dim() int { return ix.dim }

// MaxSeq is the highest interaction sequence held, 0 for an empty index.
func (ix *Index) MaxSeq() int64 {
	var top int64
	for _, e := range ix.entries {
		if e.Seq > top {
			top = e.Seq
		}
	}
	return top
}

// Upsert adds e, replacing any entry with the same id.
func (ix *Index) Upsert(e Entry) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if ix.dim == 0 {
		ix.dim = len(e.Vector)
	} else if len(e.Vector) != ix.dim {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(e.Vector), ix.dim)
	}

	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)
	e.Vector = vec

	if i, ok := ix.pos[e.ID]; ok {
		ix.entries[i] = e
		return nil
	}
	ix.pos[e.ID] = len(ix.entries)
	ix.entries = append(ix.entries, e)
	return nil
}

// Remove deletes the entry with id, reporting whether it was present.
func (ix *Index) Remove(id uuid.UUID) bool {
	i, ok := ix.pos[id]
	if !ok {
		return false
	}
	last := len(ix.entries) - 1
	if i != last {
		ix.entries[i] = ix.entries[last]
		ix.pos[ix.entries[i].ID] = i
	}
	ix.entries = ix.entries[:last]
	delete(ix.pos, id)
	if len(ix.entries) == 0 {
		ix.dim = 0
	}
	return true
}

// Search returns up to k entries closest to query, best first. Equal scores
// are ordered by Seq descending, then by id. A non-empty subreddit restricts
// the candidates to entries carrying that label.
func (ix *Index) Search(query []float32, k int, subreddit string) ([]Hit, error) {
	if k <= 0 || len(ix.entries) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		if subreddit != "" && e.Subreddit != subreddit {
			continue
		}
		hits = append(hits, Hit{ID: e.ID, Seq: e.Seq, Score: Similarity(query, e.Vector)})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hitLess(hits[i], hits[j])
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func hitLess(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.ID.String() < b.ID.String()
}

// Similarity maps squared Euclidean distance into (0,1]; identical vectors score 1.
func Similarity(a, b []float32) float64 {
	var d float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		d += diff * diff
	}
	return 1 / (1 + d)
}

func (ix *Index) snapshotEntries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}
