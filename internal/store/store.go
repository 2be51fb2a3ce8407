package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/lukman83/adscout/internal/models"
)

// ErrNotFound is returned when no listing carries the requested id.
var ErrNotFound = errors.New("listing not found")

// ListingStore is the JSON-array file holding every listing ever seen.
//
// Every mutation reloads the file, applies the change and replaces the file
// atomically, so readers never observe a truncated document and an
// interrupted process loses at most the record in flight. Mutations within
// one process are serialised; across processes the last writer wins.
type ListingStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a store backed by path. The file is created on first write.
func New(path string, logger *slog.Logger) *ListingStore {
	return &ListingStore{
		path:   path,
		logger: logger.With("component", "store", "path", path),
	}
}

func (s *ListingStore) Path() string { return s.path }

// Load returns all listings in file order. A missing, empty or invalid
// file yields an empty slice.
func (s *ListingStore) Load() ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listings, _, err := s.load()
	return listings, err
}

// IDs returns the set of non-empty listing ids currently stored.
func (s *ListingStore) IDs() (map[string]struct{}, error) {
	listings, err := s.Load()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if l.ID != "" {
			ids[l.ID] = struct{}{}
		}
	}
	return ids, nil
}

// Contains reports whether a listing with the id is stored. The empty id
// never matches.
func (s *ListingStore) Contains(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	ids, err := s.IDs()
	if err != nil {
		return false, err
	}
	_, ok := ids[id]
	return ok, nil
}

// Append adds the listing and persists the full set. It returns false
// without writing when a listing with the same non-empty id already exists.
func (s *ListingStore) Append(l models.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings, corrupt, err := s.load()
	if err != nil {
		return false, err
	}
	if l.ID != "" {
		for i := range listings {
			if listings[i].ID == l.ID {
				return false, nil
			}
		}
	}
	if corrupt {
		s.quarantine()
	}
	listings = append(listings, l)
	if err := WriteJSON(s.path, listings); err != nil {
		return false, fmt.Errorf("persist listing %q: %w", l.ID, err)
	}
	return true, nil
}

// MarkEnriched merges the enrichment into the listing with the given id
// and persists the full set.
func (s *ListingStore) MarkEnriched(id string, e models.Enrichment) error {
	return s.MarkEnrichedAt(-1, id, e)
}

// MarkEnrichedAt is MarkEnriched with a position hint. The store is
// append-only, so the index a listing was loaded at stays valid; the hint
// is used when the listing there still has the expected id, which also
// makes listings without an id addressable.
func (s *ListingStore) MarkEnrichedAt(index int, id string, e models.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings, _, err := s.load()
	if err != nil {
		return err
	}

	pos := -1
	if index >= 0 && index < len(listings) && listings[index].ID == id {
		pos = index
	} else if id != "" {
		for i := range listings {
			if listings[i].ID == id {
				pos = i
				break
			}
		}
	}
	if pos < 0 {
		return fmt.Errorf("mark enriched %q: %w", id, ErrNotFound)
	}

	listings[pos].Apply(e)
	if err := WriteJSON(s.path, listings); err != nil {
		return fmt.Errorf("persist enrichment %q: %w", id, err)
	}
	return nil
}

// load reads the file. corrupt is true when the file exists with content
// that does not decode.
func (s *ListingStore) load() (listings []models.Listing, corrupt bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Listing{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read listings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Listing{}, false, nil
	}
	if err := json.Unmarshal(data, &listings); err != nil {
		s.logger.Warn("listings file is not valid JSON, treating as empty", "error", err)
		return []models.Listing{}, true, nil
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, false, nil
}

// quarantine keeps an undecodable file next to the store before it is
// replaced.
func (s *ListingStore) quarantine() {
	dst := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(s.path, dst); err != nil {
		s.logger.Error("could not move corrupt listings file aside", "error", err)
		return
	}
	s.logger.Warn("moved corrupt listings file aside", "to", dst)
}

// WriteJSON atomically replaces path with the indented JSON encoding of v.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
