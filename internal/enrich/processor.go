package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
)

// Store is the part of the listing store the processor needs.
type Store interface {
	Load() ([]models.Listing, error)
	MarkEnrichedAt(index int, id string, e models.Enrichment) error
}

// ListingClassifier classifies one listing.
type ListingClassifier interface {
	Classify(ctx context.Context, title, description string) Verdict
}

// Stats summarises one processor pass.
type Stats struct {
	Scanned          int `json:"scanned"`
	AlreadyProcessed int `json:"already_processed"`
	NoDescription    int `json:"no_description"`
	Enriched         int `json:"enriched"`
	Unparseable      int `json:"unparseable"`
	Failed           int `json:"failed"`
}

// Processor enriches every stored listing that has a description and no
// verdict yet, persisting each verdict before moving on.
type Processor struct {
	store      Store
	classifier ListingClassifier
	logger     *slog.Logger
}

func NewProcessor(store Store, classifier ListingClassifier, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{
		store:      store,
		classifier: classifier,
		logger:     logger.With("component", "processor"),
	}
}

// Run makes one pass over the store. Cancellation is honoured between
// listings; a store write failure ends the pass.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	var st Stats
	listings, err := p.store.Load()
	if err != nil {
		return st, fmt.Errorf("load listings: %w", err)
	}

	pending := 0
	for i := range listings {
		if !listings[i].LLMProcessed && listings[i].DetailedDescription != "" {
			pending++
		}
	}
	p.logger.Info("enrichment pass started", "listings", len(listings), "pending", pending)

	done := 0
	for i, l := range listings {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Scanned++
		if l.LLMProcessed {
			st.AlreadyProcessed++
			continue
		}
		if l.DetailedDescription == "" {
			st.NoDescription++
			continue
		}

		done++
		progress.Report(ctx, "Classifying %d/%d: %s", done, pending, l.Title)
		v := p.classifier.Classify(ctx, l.Title, l.DetailedDescription)
		if err := p.store.MarkEnrichedAt(i, l.ID, v.Enrichment); err != nil {
			return st, fmt.Errorf("persist verdict for %q: %w", l.ID, err)
		}

		switch v.Outcome {
		case Classified:
			st.Enriched++
		case Unparseable:
			st.Unparseable++
		default:
			st.Failed++
		}
	}

	p.logger.Info("enrichment pass finished",
		"enriched", st.Enriched,
		"unparseable", st.Unparseable,
		"failed", st.Failed,
		"already_processed", st.AlreadyProcessed,
		"no_description", st.NoDescription)
	return st, nil
}
