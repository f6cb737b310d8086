package extractor

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priceowl/crawlworker/internal/record"
)

// SelectorProductExtractor extracts ProductRecords using the two-pass
// fallback protocol: structured data first, markup selectors second, merged
// per field rather than per document.
type SelectorProductExtractor struct {
	Slug        string
	URLPatterns []string
	Selectors   ProductSelectors
}

// CanHandle claims URLs containing any of the configured patterns. An empty
// pattern list claims everything the retailer dispatches.
func (e *SelectorProductExtractor) CanHandle(url string) bool {
	return matchesAny(url, e.URLPatterns)
}

// Extract produces at most one ProductRecord per document. A page without a
// recognizable title yields zero records, not an error.
func (e *SelectorProductExtractor) Extract(doc *goquery.Document, url string) ([]record.ProductRecord, error) {
	structured := parseStructuredProduct(doc)
	root := doc.Selection

	p := record.ProductRecord{
		InStock: true,
		Metadata: record.Metadata{
			RetailerSlug: e.Slug,
			SourceURL:    url,
			ExtractedAt:  time.Now().UTC(),
			Strategy:     record.StrategyMarkup,
		},
	}

	var explicitID string
	if structured != nil {
		p.Metadata.Strategy = record.StrategyStructuredData
		p.Title = structured.Title
		p.Description = structured.Description
		p.Brand = structured.Brand
		p.Price = structured.Price
		p.ImageURLs = structured.ImageURLs
		p.RatingAverage = structured.RatingAverage
		p.RatingCount = structured.RatingCount
		explicitID = structured.SKU
		if structured.Availability != "" {
			p.InStock = !strings.Contains(strings.ToLower(structured.Availability), "outofstock")
		}
	}

	// Markup pass fills whatever the structured pass left empty
	if p.Title == "" {
		p.Title = firstText(root, e.Selectors.Title)
	}
	if p.Description == "" {
		p.Description = firstText(root, e.Selectors.Description)
	}
	if p.Brand == "" {
		p.Brand = firstText(root, e.Selectors.Brand)
	}
	if p.Price == nil {
		p.Price = ParsePrice(firstText(root, e.Selectors.Price))
	}
	if p.WasPrice == nil {
		p.WasPrice = ParsePrice(firstText(root, e.Selectors.WasPrice))
	}
	if len(p.ImageURLs) == 0 {
		p.ImageURLs = allAttrs(root, e.Selectors.Images, "src")
	}
	if explicitID == "" {
		if e.Selectors.IDAttr != "" {
			explicitID = firstAttr(root, e.Selectors.ExternalID, e.Selectors.IDAttr)
		} else {
			explicitID = firstText(root, e.Selectors.ExternalID)
		}
	}
	// An explicit out-of-stock marker overrides the in-stock default either way
	if (structured == nil || structured.Availability == "") && exists(root, e.Selectors.OutOfStock) {
		p.InStock = false
	}

	if p.Title == "" {
		return nil, nil
	}

	p.WeightGrams, p.PackQuantity = ParseWeight(p.Title)
	p.ExternalID = ProductExternalID(explicitID, url)
	return []record.ProductRecord{p}, nil
}

// matchesAny reports whether the URL contains any of the patterns; an empty
// list matches everything
func matchesAny(url string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		if pat != "" && strings.Contains(url, pat) {
			return true
		}
	}
	return false
}

// parseRating reads a fractional 0-5 rating from free text such as
// "4.3 out of 5" or "4,5"
func parseRating(text string) float64 {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != ','
	})
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.Replace(f, ",", ".", 1), 64)
		if err == nil && v >= 0 && v <= 5 {
			return v
		}
	}
	return 0
}
