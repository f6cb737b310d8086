package extractor

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"priceowl/crawlworker/helpers"
	"priceowl/crawlworker/internal/record"
)

// SelectorListingExtractor discovers product page references on a listing
// page. Listing pages rarely carry structured data for the tiles themselves,
// so this extractor is markup-only; ItemList structured data is still tried
// first when present.
type SelectorListingExtractor struct {
	Slug        string
	BaseURL     string
	URLPatterns []string
	Selectors   ListingSelectors
}

func (e *SelectorListingExtractor) CanHandle(url string) bool {
	return matchesAny(url, e.URLPatterns)
}

func (e *SelectorListingExtractor) Extract(doc *goquery.Document, url string) ([]record.ListingRef, error) {
	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var refs []record.ListingRef

	add := func(link, category string, strategy record.Strategy) {
		abs := helpers.ResolveURL(e.BaseURL, link)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		refs = append(refs, record.ListingRef{
			URL:      abs,
			Category: category,
			Metadata: record.Metadata{
				RetailerSlug: e.Slug,
				SourceURL:    url,
				ExtractedAt:  now,
				Strategy:     strategy,
			},
		})
	}

	// Structured pass: schema.org ItemList entries
	for _, list := range structuredObjects(doc, "ItemList") {
		var items []map[string]any
		collectTyped(list["itemListElement"], "ListItem", &items)
		for _, item := range items {
			link := jsonString(item, "url")
			if link == "" {
				if nested := jsonObject(item, "item"); nested != nil {
					link = jsonString(nested, "url")
				}
			}
			if link != "" {
				add(link, "", record.StrategyStructuredData)
			}
		}
	}

	// Markup pass: one reference per product tile
	pageCategory := firstText(doc.Selection, e.Selectors.Category)
	doc.Find(e.Selectors.Item).Each(func(_ int, s *goquery.Selection) {
		link := firstAttr(s, e.Selectors.Link, "href")
		if link == "" {
			// The tile itself may be the anchor
			if href, ok := s.Attr("href"); ok {
				link = href
			}
		}
		if link == "" {
			return
		}
		category := firstText(s, e.Selectors.Category)
		if category == "" {
			category = pageCategory
		}
		add(link, category, record.StrategyMarkup)
	})

	return refs, nil
}
