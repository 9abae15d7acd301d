package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/OraMead/notehub-back/internal/config"
)

const blobPerm fs.FileMode = 0o644

// NoteStore keeps one flat-text blob per note under the configured root.
// Blobs are addressed by note id only, never by an uploaded filename.
type NoteStore struct {
	root string
}

func NewNoteStore(cfg *config.Config) (*NoteStore, error) {
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage root")
	}
	return &NoteStore{
		root: cfg.StoragePath,
	}, nil
}

func (s *NoteStore) path(noteID uint64) string {
	return filepath.Join(s.root, strconv.FormatUint(noteID, 10)+".txt")
}

// Write replaces the blob for noteID atomically: temp file, fsync, rename.
func (s *NoteStore) Write(noteID uint64, content []byte) error {
	path := s.path(noteID)
	tmp := filepath.Join(s.root, fmt.Sprintf(".tmp.%d.%d", noteID, os.Getpid()))

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, blobPerm)
	if err != nil {
		return errors.Wrap(err, "open temp blob")
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return errors.Wrap(err, "write blob")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "sync blob")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close blob")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename blob")
	}
	return nil
}

// Read returns the blob content for noteID. A missing blob reads as empty
// content, not an error.
func (s *NoteStore) Read(noteID uint64) ([]byte, error) {
	data, err := os.ReadFile(s.path(noteID))
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, nil
		}
		return nil, errors.Wrap(err, "read blob")
	}
	return data, nil
}

// Copy duplicates the source blob byte-for-byte under the destination id.
// A missing source copies as empty content so the two notes stay
// independent either way.
func (s *NoteStore) Copy(srcID, dstID uint64) error {
	data, err := s.Read(srcID)
	if err != nil {
		return err
	}
	return s.Write(dstID, data)
}

// Remove deletes the blob for noteID; a missing blob is a no-op.
func (s *NoteStore) Remove(noteID uint64) error {
	err := os.Remove(s.path(noteID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove blob")
	}
	return nil
}
