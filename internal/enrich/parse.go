package enrich

import (
	"regexp"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/models"
)

// Parsed holds the answer lines found in a model response. A nil field was
// not found or had no recognisable value.
type Parsed struct {
	RAMMore       *models.Tri
	ScreenSmall   *models.Tri
	ScreenHighRes *models.Tri
	FullInfo      *bool
}

// Empty reports whether no answer line was recognised.
func (p Parsed) Empty() bool {
	return p.RAMMore == nil && p.ScreenSmall == nil && p.ScreenHighRes == nil && p.FullInfo == nil
}

// Consistent reports whether an explicit full_info_obtained line agrees
// with the three attributes.
func (p Parsed) Consistent() bool {
	return p.FullInfo == nil || *p.FullInfo == p.derivedFullInfo()
}

func (p Parsed) derivedFullInfo() bool {
	return known(p.RAMMore) && known(p.ScreenSmall) && known(p.ScreenHighRes)
}

// Verdict turns the parsed lines into the fields persisted on a listing.
// A response with no recognised line yields the unparseable verdict:
// processed, incomplete, all attributes unknown. Otherwise missing
// attributes are unknown and full_info is true only when all three are
// determined.
func (p Parsed) Verdict(now time.Time) models.Enrichment {
	v := models.Enrichment{
		Processed:     true,
		ProcessedTime: timestamp(now),
	}
	if p.Empty() {
		return v
	}
	v.RAMMore = orUnknown(p.RAMMore)
	v.ScreenSmall = orUnknown(p.ScreenSmall)
	v.ScreenHighRes = orUnknown(p.ScreenHighRes)
	v.FullInfo = p.derivedFullInfo()
	return v
}

// ParseResponse scans text line by line for the four answer keys. The
// first line carrying a key decides it, even when its value is not
// recognisable.
func ParseResponse(text string) Parsed {
	var p Parsed
	var seenRAM, seenSmall, seenHighRes, seenFull bool
	for _, raw := range strings.Split(text, "\n") {
		line := strings.ToLower(stripMarkup(raw))
		switch {
		case strings.HasPrefix(line, "ram_more"):
			if !seenRAM {
				seenRAM = true
				p.RAMMore = triValue(line[len("ram_more"):])
			}
		case strings.HasPrefix(line, "screen_small"):
			if !seenSmall {
				seenSmall = true
				p.ScreenSmall = triValue(line[len("screen_small"):])
			}
		case strings.HasPrefix(line, "screen_highres"):
			if !seenHighRes {
				seenHighRes = true
				p.ScreenHighRes = triValue(line[len("screen_highres"):])
			}
		case strings.HasPrefix(line, "full_info_obtained"):
			if !seenFull {
				seenFull = true
				p.FullInfo = boolValue(line[len("full_info_obtained"):])
			}
		}
	}
	return p
}

var listMarker = regexp.MustCompile(`^\d+[.)]\s*`)

// stripMarkup removes list bullets, numbering, emphasis and surrounding
// whitespace so "- **RAM_more** = true" and "1. RAM_more = true" read as
// "RAM_more = true".
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•> \t")
	s = listMarker.ReplaceAllString(s, "")
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	return strings.TrimSpace(s)
}

func triValue(rest string) *models.Tri {
	var t models.Tri
	switch {
	case strings.Contains(rest, "true"):
		t = models.True
	case strings.Contains(rest, "false"):
		t = models.False
	case strings.Contains(rest, "unknown"):
		t = models.Unknown
	default:
		return nil
	}
	return &t
}

func boolValue(rest string) *bool {
	var b bool
	switch {
	case strings.Contains(rest, "true"):
		b = true
	case strings.Contains(rest, "false"):
		b = false
	default:
		return nil
	}
	return &b
}

func known(t *models.Tri) bool { return t != nil && t.Known() }

func orUnknown(t *models.Tri) models.Tri {
	if t == nil {
		return models.Unknown
	}
	return *t
}

func timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
