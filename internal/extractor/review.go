package extractor

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priceowl/crawlworker/internal/record"
)

// SelectorReviewExtractor extracts customer reviews with the same two-pass
// protocol as products: JSON-LD Review objects first, review markup second.
// The two passes are merged by external id so a page carrying both does not
// double-report.
type SelectorReviewExtractor struct {
	Slug        string
	URLPatterns []string
	Selectors   ReviewSelectors
}

func (e *SelectorReviewExtractor) CanHandle(url string) bool {
	return matchesAny(url, e.URLPatterns)
}

func (e *SelectorReviewExtractor) Extract(doc *goquery.Document, url string) ([]record.ReviewRecord, error) {
	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var reviews []record.ReviewRecord

	meta := func(strategy record.Strategy) record.Metadata {
		return record.Metadata{
			RetailerSlug: e.Slug,
			SourceURL:    url,
			ExtractedAt:  now,
			Strategy:     strategy,
		}
	}

	for i, sr := range parseStructuredReviews(doc) {
		r := record.ReviewRecord{
			ExternalID: ReviewExternalID(sr.ID, sr.Author, sr.Body, i),
			Rating:     sr.Rating,
			Author:     sr.Author,
			Title:      sr.Title,
			Body:       sr.Body,
			ReviewedAt: parseReviewDate(sr.Date),
			Metadata:   meta(record.StrategyStructuredData),
		}
		if _, dup := seen[r.ExternalID]; dup {
			continue
		}
		seen[r.ExternalID] = struct{}{}
		reviews = append(reviews, r)
	}

	if e.Selectors.Item == "" {
		return reviews, nil
	}

	doc.Find(e.Selectors.Item).Each(func(i int, s *goquery.Selection) {
		author := firstText(s, e.Selectors.Author)
		body := firstText(s, e.Selectors.Body)
		if author == "" && body == "" {
			return
		}

		var explicit string
		if e.Selectors.IDAttr != "" {
			if v, ok := s.Attr(e.Selectors.IDAttr); ok {
				explicit = strings.TrimSpace(v)
			}
		}

		r := record.ReviewRecord{
			ExternalID:       ReviewExternalID(explicit, author, body, i),
			Rating:           parseRating(firstText(s, e.Selectors.Rating)),
			Author:           author,
			Title:            firstText(s, e.Selectors.Title),
			Body:             body,
			ReviewedAt:       parseReviewDate(firstText(s, e.Selectors.Date)),
			VerifiedPurchase: exists(s, e.Selectors.Verified),
			HelpfulVotes:     parseHelpfulVotes(firstText(s, e.Selectors.Helpful)),
			Metadata:         meta(record.StrategyMarkup),
		}
		if _, dup := seen[r.ExternalID]; dup {
			return
		}
		seen[r.ExternalID] = struct{}{}
		reviews = append(reviews, r)
	})

	return reviews, nil
}

var reviewDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
}

// parseReviewDate tries the common retail date shapes; an unrecognized
// date yields the zero time rather than an error
func parseReviewDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	for _, layout := range reviewDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseHelpfulVotes reads the first integer out of text like
// "12 people found this helpful"
func parseHelpfulVotes(text string) int {
	for _, f := range strings.Fields(text) {
		if n, err := strconv.Atoi(strings.Trim(f, "()")); err == nil {
			return n
		}
	}
	return 0
}
