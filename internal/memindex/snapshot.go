package memindex

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	snapshotMagic   = "credo-memindex"
	snapshotVersion = 2
	snapshotExt     = ".idx"
)

var (
	ErrSnapshotMissing = errors.New("index snapshot missing")
	ErrSnapshotCorrupt = errors.New("index snapshot corrupt")
)

type snapshotHeader struct {
	Magic     string
	Version   int
	PersonaID uuid.UUID
	Dim       int
	Count     int
	MaxSeq    int64
}

type snapshotEntry struct {
	ID        [16]byte
	Seq       int64
	Subreddit string
	Vector    []float32
}

func snapshotPath(dir string, personaID uuid.UUID) string {
	return filepath.Join(dir, personaID.String()+snapshotExt)
}

// writeSnapshot writes to a temp file in dir and renames it into place, so a
// crash mid-write never leaves a truncated snapshot under the final name.
func writeSnapshot(dir string, personaID uuid.UUID, ix *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, personaID.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	enc := gob.NewEncoder(w)
	entries := ix.snapshotEntries()
	header := snapshotHeader{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		PersonaID: personaID,
		Dim:       ix.Dim(),
		Count:     len(entries),
		MaxSeq:    ix.MaxSeq(),
	}
	if err := enc.Encode(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode snapshot header: %w", err)
	}
	for _, e := range entries {
		if err := enc.Encode(snapshotEntry{ID: e.ID, Seq: e.Seq, Subreddit: e.Subreddit, Vector: e.Vector}); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode snapshot entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), snapshotPath(dir, personaID))
}

func readSnapshot(dir string, personaID uuid.UUID) (*Index, error) {
	f, err := os.Open(snapshotPath(dir, personaID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(bufio.NewReader(f))
	var header snapshotHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrSnapshotCorrupt, err)
	}
	if header.Magic != snapshotMagic || header.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported format %q v%d", ErrSnapshotCorrupt, header.Magic, header.Version)
	}
	if header.PersonaID != personaID {
		return nil, fmt.Errorf("%w: snapshot belongs to persona %s", ErrSnapshotCorrupt, header.PersonaID)
	}

	ix := New()
	for i := 0; i < header.Count; i++ {
		var e snapshotEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrSnapshotCorrupt, i, err)
		}
		if err := ix.Upsert(Entry{ID: uuid.UUID(e.ID), Seq: e.Seq, Subreddit: e.Subreddit, Vector: e.Vector}); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrSnapshotCorrupt, i, err)
		}
	}
	if header.Count > 0 && ix.Dim() != header.Dim {
		return nil, fmt.Errorf("%w: dimension %d does not match header %d", ErrSnapshotCorrupt, ix.Dim(), header.Dim)
	}
	if ix.Len() != header.Count || ix.MaxSeq() != header.MaxSeq {
		return nil, fmt.Errorf("%w: entries do not match header", ErrSnapshotCorrupt)
	}
	return ix, nil
}

func removeSnapshot(dir string, personaID uuid.UUID) error {
	err := os.Remove(snapshotPath(dir, personaID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
