package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/lukman83/adscout/internal/models"
)

// JSONFile is a small config document persisted with the same atomic
// replace as the listings store.
type JSONFile[T any] struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile[T any](path string) *JSONFile[T] {
	return &JSONFile[T]{path: path}
}

func (f *JSONFile[T]) Path() string { return f.path }

// Read decodes the file. ok is false when the file does not exist.
func (f *JSONFile[T]) Read() (v T, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return v, true, nil
}

// Write replaces the file with v.
func (f *JSONFile[T]) Write(v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return WriteJSON(f.path, v)
}

// SearchURLs is the configured search URL list.
type SearchURLs = JSONFile[[]models.SearchURL]

// ScheduleFile is the persisted scheduler cadence.
type ScheduleFile = JSONFile[models.Schedule]

// ReadSchedule returns the stored schedule, writing and returning the
// default when none exists yet.
func ReadSchedule(f *ScheduleFile) (models.Schedule, error) {
	sched, ok, err := f.Read()
	if err != nil {
		return models.Schedule{}, err
	}
	if !ok {
		sched = models.DefaultSchedule()
		if err := f.Write(sched); err != nil {
			return sched, err
		}
	}
	return sched, nil
}

// EnabledURLs returns the urls of enabled entries, in file order.
func EnabledURLs(f *SearchURLs) ([]string, error) {
	entries, _, err := f.Read()
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, e := range entries {
		if e.URL != "" && e.IsEnabled() {
			urls = append(urls, e.URL)
		}
	}
	return urls, nil
}
