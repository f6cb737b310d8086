package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingSelectors drive the markup pass over a category/listing page
type ListingSelectors struct {
	// Item matches one product tile; Link is resolved within each item
	Item     string
	Link     []string
	Category []string
}

// ProductSelectors drive the markup pass over a product detail page.
// Each field carries an ordered selector list: first non-empty match wins.
type ProductSelectors struct {
	Title       []string
	Description []string
	Brand       []string
	Price       []string
	WasPrice    []string
	// OutOfStock marks explicit unavailability; absence means in stock
	OutOfStock []string
	Images     []string
	// ExternalID reads an explicit source id, usually from a data attribute
	ExternalID []string
	IDAttr     string
}

// ReviewSelectors drive the markup pass over a review section
type ReviewSelectors struct {
	Item     string
	Rating   []string
	Author   []string
	Title    []string
	Body     []string
	Date     []string
	Verified []string
	Helpful  []string
	IDAttr   string
}

// firstText returns the first non-empty trimmed text among the ordered
// selectors, scoped to the given selection
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		found := s.Find(sel)
		if found.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(found.First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute value among the ordered
// selectors
func firstAttr(s *goquery.Selection, selectors []string, attr string) string {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		var value string
		s.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
				value = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if value != "" {
			return value
		}
	}
	return ""
}

// allAttrs collects every non-empty attribute value among the ordered
// selectors, de-duplicated in document order
func allAttrs(s *goquery.Selection, selectors []string, attr string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		s.Find(sel).Each(func(_ int, el *goquery.Selection) {
			v, ok := el.Attr(attr)
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				return
			}
			if _, dup := seen[v]; dup {
				return
			}
			seen[v] = struct{}{}
			out = append(out, v)
		})
	}
	return out
}

// exists reports whether any of the selectors matches at all
func exists(s *goquery.Selection, selectors []string) bool {
	for _, sel := range selectors {
		if sel != "" && s.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
