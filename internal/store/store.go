package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/synacktiv/lumina-server/internal/logger"
	"github.com/synacktiv/lumina-server/internal/wire"
)

// jsonMetadata is the on-disk shape of a Metadata entry: func_name and
// func_size serialize directly, serialized_data is base64-encoded the
// way the reference database.py persists its opaque blobs.
type jsonMetadata struct {
	FuncName       string `json:"func_name"`
	FuncSize       uint32 `json:"func_size"`
	SerializedData string `json:"serialized_data"`
}

// jsonEntry is the on-disk shape of one signature's store entry.
type jsonEntry struct {
	Metadata   []jsonMetadata `json:"metadata"`
	Popularity uint32         `json:"popularity"`
}

// Store is the signature-keyed metadata store. The backing file is
// touched only by Open (which loads it before the Store is shared),
// Save, and Close; Save and Close hold mu exclusively. Concurrent
// push/pull calls share a single reader-writer lock over the whole
// in-memory mapping, per spec.md §5's single-lock recommendation.
type Store struct {
	mu   sync.RWMutex
	path string
	file *os.File
	db   map[string]*jsonEntry
}

// Open opens (creating if absent) the store file at path and loads its
// contents into memory.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &Error{Op: "load", Err: err}
	}

	s := &Store{path: path, file: f, db: make(map[string]*jsonEntry)}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return &Error{Op: "load", Err: err}
	}
	if info.Size() == 0 {
		s.db = make(map[string]*jsonEntry)
		return nil
	}

	if _, err := s.file.Seek(0, 0); err != nil {
		return &Error{Op: "load", Err: err}
	}
	var db map[string]*jsonEntry
	if err := json.NewDecoder(s.file).Decode(&db); err != nil {
		s.db = nil
		return &Error{Op: "load", Err: err}
	}
	s.db = db
	return nil
}

// canonicalKey returns the lookup key for a signature: the raw
// signature bytes, base64-encoded for JSON storage. The version is
// deliberately not part of the key (spec.md §3).
func canonicalKey(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// Push inserts fm's metadata under its signature, returning true iff
// the signature was previously absent. No deduplication or merging:
// every push appends. A non-1 signature version is accepted and only
// logged, matching the reference client's leniency.
func (s *Store) Push(fm wire.FuncMd) bool {
	if fm.Signature.Version != 1 {
		logger.Warn("unsupported signature version", "version", fm.Signature.Version)
	}

	key := canonicalKey(fm.Signature.Bytes)
	entry := jsonMetadata{
		FuncName:       fm.Metadata.FuncName,
		FuncSize:       fm.Metadata.FuncSize,
		SerializedData: base64.StdEncoding.EncodeToString(fm.Metadata.SerializedData),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, newSig := s.db[key], false
	if rec == nil {
		rec = &jsonEntry{}
		s.db[key] = rec
		newSig = true
	}
	rec.Metadata = append(rec.Metadata, entry)
	rec.Popularity++
	return newSig
}

// Pull looks up sig and returns the most recently pushed Metadata
// paired with the entry's current popularity. ok is false if no push
// for this signature has ever occurred.
func (s *Store) Pull(sig wire.Signature) (info wire.FuncInfo, ok bool) {
	if sig.Version != 1 {
		logger.Warn("unsupported signature version", "version", sig.Version)
	}

	key := canonicalKey(sig.Bytes)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.db[key]
	if rec == nil || len(rec.Metadata) == 0 {
		return wire.FuncInfo{}, false
	}

	last := rec.Metadata[len(rec.Metadata)-1]
	data, err := base64.StdEncoding.DecodeString(last.SerializedData)
	if err != nil {
		logger.Error("corrupt stored metadata", "key", key, "error", err)
		return wire.FuncInfo{}, false
	}

	return wire.FuncInfo{
		Metadata: wire.Metadata{
			FuncName:       last.FuncName,
			FuncSize:       last.FuncSize,
			SerializedData: data,
		},
		Popularity: rec.Popularity,
	}, true
}

// Save serializes the whole mapping to the backing file, truncating
// from offset 0. A fresh Open of the same path yields exactly this
// state.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.db)
	if err != nil {
		return &Error{Op: "save", Err: err}
	}
	if _, err := s.file.Seek(0, 0); err != nil {
		return &Error{Op: "save", Err: err}
	}
	if err := s.file.Truncate(0); err != nil {
		return &Error{Op: "save", Err: err}
	}
	if _, err := s.file.Write(data); err != nil {
		return &Error{Op: "save", Err: err}
	}
	return nil
}

// Close releases the backing file, performing a final Save first if
// save is true.
func (s *Store) Close(save bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if save {
		err = s.saveLocked()
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close store file: %w", closeErr)
	}
	return err
}
