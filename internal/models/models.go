package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tri is a three-valued attribute: true, false, or undetermined from the text.
type Tri int

const (
	Unknown Tri = iota
	False
	True
)

// TriOf converts a bool to a determined Tri.
func TriOf(b bool) Tri {
	if b {
		return True
	}
	return False
}

// Known reports whether the value is true or false.
func (t Tri) Known() bool { return t == True || t == False }

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON writes true, false or the string "unknown".
func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte(`"unknown"`), nil
	}
}

// UnmarshalJSON accepts booleans and the strings "true", "false", "unknown".
func (t *Tri) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*t = True
		return nil
	case "false":
		*t = False
		return nil
	case "null":
		*t = Unknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tri: unsupported value %s", data)
	}
	switch s {
	case "true":
		*t = True
	case "false":
		*t = False
	case "unknown", "":
		*t = Unknown
	default:
		return fmt.Errorf("tri: unsupported value %q", s)
	}
	return nil
}

// Listing is one classified ad as persisted in the listings store.
type Listing struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Price               string `json:"price"`
	ShortDescription    string `json:"short_description"`
	Location            string `json:"location"`
	URL                 string `json:"url"`
	DetailedDescription string `json:"detailed_description"`

	LLMProcessed     bool   `json:"llm_processed"`
	LLMProcessedTime string `json:"llm_processed_time,omitempty"`
	FullInfoObtained *bool  `json:"full_info_obtained,omitempty"`
	RAMMore          *Tri   `json:"RAM_more,omitempty"`
	ScreenSmall      *Tri   `json:"screen_small,omitempty"`
	ScreenHighRes    *Tri   `json:"screen_highres,omitempty"`
}

// Enriched reports whether the listing carries a successful verdict.
func (l *Listing) Enriched() bool { return l.LLMProcessed }

// Enrichment is the set of fields written by one classification exchange.
type Enrichment struct {
	Processed     bool
	ProcessedTime string
	FullInfo      bool
	RAMMore       Tri
	ScreenSmall   Tri
	ScreenHighRes Tri
}

// Apply merges all enrichment fields into the listing at once.
func (l *Listing) Apply(e Enrichment) {
	full := e.FullInfo
	ram, small, highres := e.RAMMore, e.ScreenSmall, e.ScreenHighRes
	l.LLMProcessed = e.Processed
	l.LLMProcessedTime = e.ProcessedTime
	l.FullInfoObtained = &full
	l.RAMMore = &ram
	l.ScreenSmall = &small
	l.ScreenHighRes = &highres
}

// HasFullInfo is true for enriched listings whose three attributes are all determined.
func (l *Listing) HasFullInfo() bool {
	return l.LLMProcessed && l.FullInfoObtained != nil && *l.FullInfoObtained
}

// SearchURL is one configured search results URL.
type SearchURL struct {
	URL     string `json:"url"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// IsEnabled treats a missing flag as enabled.
func (s SearchURL) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Schedule is the periodic run cadence.
type Schedule struct {
	Interval int  `json:"interval"` // minutes
	Enabled  bool `json:"enabled"`
}

// DefaultSchedule runs hourly.
func DefaultSchedule() Schedule {
	return Schedule{Interval: 60, Enabled: true}
}
