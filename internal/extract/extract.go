package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/adscout/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Selectors locate listing fields in marketplace documents.
type Selectors struct {
	ResultsReady     string // present once the results list has rendered
	Item             string // one search result
	IDElement        string // element carrying IDAttr
	IDAttr           string
	TitleLink        string // title text and detail href
	Price            string
	ShortDescription string
	Location         string
	DetailReady      string // present once the detail page has rendered
	DetailText       string // long-form description container
}

// DefaultSelectors match kleinanzeigen.de result and detail pages.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsReady:     "#srchrslt-adtable",
		Item:             "ul#srchrslt-adtable li.ad-listitem",
		IDElement:        "article.aditem",
		IDAttr:           "data-adid",
		TitleLink:        "h2 a",
		Price:            "p.aditem-main--middle--price-shipping--price",
		ShortDescription: "p.aditem-main--middle--description",
		Location:         ".aditem-main--top--left",
		DetailReady:      "#viewad-description",
		DetailText:       "#viewad-description-text",
	}
}

// Extractor turns rendered documents into listing records.
type Extractor struct {
	origin string
	sel    Selectors
	logger *slog.Logger
}

// New returns an extractor resolving relative hrefs against origin
// (scheme and host, no trailing slash).
func New(origin string, sel Selectors, logger *slog.Logger) *Extractor {
	return &Extractor{
		origin: strings.TrimRight(origin, "/"),
		sel:    sel,
		logger: logger.With("component", "extract"),
	}
}

func (e *Extractor) Selectors() Selectors { return e.sel }

// Summaries returns one partial listing per search result item, in
// document order. Items that fail to parse are logged and skipped; absent
// fields are left empty.
func (e *Extractor) Summaries(doc string) ([]models.Listing, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var out []models.Listing
	d.Find(e.sel.Item).Each(func(i int, item *goquery.Selection) {
		l, err := e.summary(item)
		if err != nil {
			e.logger.Warn("skipping result item", "index", i, "error", err)
			return
		}
		out = append(out, l)
	})
	return out, nil
}

func (e *Extractor) summary(item *goquery.Selection) (l models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract item: %v", r)
		}
	}()

	id, _ := item.Find(e.sel.IDElement).First().Attr(e.sel.IDAttr)
	title := item.Find(e.sel.TitleLink).First()

	l = models.Listing{
		ID:               strings.TrimSpace(id),
		Title:            clean(title.Text()),
		Price:            clean(item.Find(e.sel.Price).First().Text()),
		ShortDescription: clean(item.Find(e.sel.ShortDescription).First().Text()),
		Location:         clean(item.Find(e.sel.Location).First().Text()),
	}
	if href, ok := title.Attr("href"); ok && strings.TrimSpace(href) != "" {
		l.URL = e.DetailURL(href)
	}
	return l, nil
}

// DetailURL resolves a listing href against the site origin. Absolute
// hrefs are returned unchanged.
func (e *Extractor) DetailURL(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.origin + href
}

// Detail returns the long-form description of a detail page, text nodes
// joined by newlines. It is empty when the container is absent.
func (e *Extractor) Detail(doc string) string {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		e.logger.Warn("parse detail page", "error", err)
		return ""
	}
	container := d.Find(e.sel.DetailText).First()
	if container.Length() == 0 {
		return ""
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := collapse(norm.NFC.String(n.Data)); s != "" {
				lines = append(lines, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range container.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

// clean NFC-normalises s and collapses runs of whitespace.
func clean(s string) string {
	return collapse(norm.NFC.String(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
