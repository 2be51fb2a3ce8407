package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ListingStore {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", "listings.json"), logging.Discard())
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	listings, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, listings)
	assert.NotNil(t, listings)
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"id": "1", "title"`), 0o644))

	listings, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, listings)

	ok, err := s.Contains("1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendPersistsEachRecord(t *testing.T) {
	s := newTestStore(t)

	added, err := s.Append(models.Listing{ID: "100", Title: "first"})
	require.NoError(t, err)
	assert.True(t, added)

	// Another reader sees a complete, valid document after every write.
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var onDisk []models.Listing
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 1)

	added, err = s.Append(models.Listing{ID: "200", Title: "second"})
	require.NoError(t, err)
	assert.True(t, added)

	listings, err := s.Load()
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "100", listings[0].ID)
	assert.Equal(t, "200", listings[1].ID)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestAppendRefusesDuplicateID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(models.Listing{ID: "100", Title: "first"})
	require.NoError(t, err)

	added, err := s.Append(models.Listing{ID: "100", Title: "again"})
	require.NoError(t, err)
	assert.False(t, added)

	// Empty ids never deduplicate.
	for i := 0; i < 2; i++ {
		added, err = s.Append(models.Listing{Title: "anonymous"})
		require.NoError(t, err)
		assert.True(t, added)
	}

	listings, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, listings, 3)
	assert.Equal(t, "first", listings[0].Title)

	ok, err := s.Contains("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendQuarantinesCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`not json`), 0o644))

	added, err := s.Append(models.Listing{ID: "1"})
	require.NoError(t, err)
	assert.True(t, added)

	matches, err := filepath.Glob(s.Path() + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	listings, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestMarkEnriched(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(models.Listing{ID: "a"})
	require.NoError(t, err)
	_, err = s.Append(models.Listing{ID: "b"})
	require.NoError(t, err)

	err = s.MarkEnriched("b", models.Enrichment{
		Processed:     true,
		ProcessedTime: "2026-10-14T10:00:00Z",
		FullInfo:      true,
		RAMMore:       models.True,
		ScreenSmall:   models.False,
		ScreenHighRes: models.True,
	})
	require.NoError(t, err)

	listings, err := s.Load()
	require.NoError(t, err)
	assert.False(t, listings[0].LLMProcessed)
	assert.Nil(t, listings[0].RAMMore)
	assert.True(t, listings[1].LLMProcessed)
	assert.True(t, listings[1].HasFullInfo())
	assert.Equal(t, models.False, *listings[1].ScreenSmall)

	err = s.MarkEnriched("missing", models.Enrichment{Processed: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkEnrichedAtAddressesListingWithoutID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(models.Listing{Title: "no id 1"})
	require.NoError(t, err)
	_, err = s.Append(models.Listing{Title: "no id 2"})
	require.NoError(t, err)

	require.NoError(t, s.MarkEnrichedAt(1, "", models.Enrichment{Processed: true}))

	listings, err := s.Load()
	require.NoError(t, err)
	assert.False(t, listings[0].LLMProcessed)
	assert.True(t, listings[1].LLMProcessed)

	assert.ErrorIs(t, s.MarkEnrichedAt(5, "", models.Enrichment{}), ErrNotFound)
}

func TestScheduleDefaultIsWritten(t *testing.T) {
	f := NewJSONFile[models.Schedule](filepath.Join(t.TempDir(), "schedule_config.json"))

	sched, err := ReadSchedule(f)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSchedule(), sched)

	_, ok, err := f.Read()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnabledURLs(t *testing.T) {
	f := NewJSONFile[[]models.SearchURL](filepath.Join(t.TempDir(), "search_urls.json"))
	off := false
	require.NoError(t, f.Write([]models.SearchURL{
		{URL: "https://site.example/a"},
		{URL: "https://site.example/b", Enabled: &off},
		{URL: ""},
	}))

	urls, err := EnabledURLs(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/a"}, urls)
}
