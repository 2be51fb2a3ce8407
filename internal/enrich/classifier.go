package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
)

// Outcome classifies how a verdict was reached.
type Outcome int

const (
	Classified  Outcome = iota // answer lines parsed
	Unparseable                // exchange succeeded, no answer line recognised
	Failed                     // transport or endpoint error
)

func (o Outcome) String() string {
	switch o {
	case Classified:
		return "classified"
	case Unparseable:
		return "unparseable"
	default:
		return "failed"
	}
}

// Verdict is the result of one classification exchange.
type Verdict struct {
	models.Enrichment
	Outcome Outcome
}

// Classifier infers the three laptop attributes of a listing with one
// language model exchange.
type Classifier struct {
	llm    Completer
	logger *slog.Logger
	now    func() time.Time
}

func NewClassifier(llm Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Classifier{
		llm:    llm,
		logger: logger.With("component", "classifier"),
		now:    time.Now,
	}
}

// Classify never returns an error. A failed exchange yields an unprocessed
// verdict with unknown attributes, leaving the listing eligible for a
// later pass; an unparseable response is not retried.
func (c *Classifier) Classify(ctx context.Context, title, description string) Verdict {
	text, err := c.llm.Complete(ctx, SystemPrompt, BuildPrompt(title, description))
	if err != nil {
		c.logger.Warn("classification exchange failed", "title", title, "error", err)
		return Verdict{
			Enrichment: models.Enrichment{ProcessedTime: timestamp(c.now())},
			Outcome:    Failed,
		}
	}

	parsed := ParseResponse(text)
	if parsed.Empty() {
		c.logger.Warn("model response has no answer lines", "title", title, "response", truncate(text, 200))
		return Verdict{Enrichment: parsed.Verdict(c.now()), Outcome: Unparseable}
	}
	if !parsed.Consistent() {
		c.logger.Debug("full_info_obtained line disagrees with attributes, using derived value", "title", title)
	}
	v := parsed.Verdict(c.now())
	c.logger.Debug("classified listing",
		"title", title,
		"RAM_more", v.RAMMore,
		"screen_small", v.ScreenSmall,
		"screen_highres", v.ScreenHighRes,
		"full_info", v.FullInfo)
	return Verdict{Enrichment: v, Outcome: Classified}
}
