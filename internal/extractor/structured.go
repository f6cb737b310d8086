package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// structuredObjects collects every JSON-LD object embedded in the document
// whose @type matches target. Blocks may hold a single object, an array of
// objects, or an @graph wrapper; malformed JSON never raises - the block is
// skipped and the caller falls through to the markup pass.
func structuredObjects(doc *goquery.Document, target string) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		collectTyped(payload, target, &out)
	})
	return out
}

func collectTyped(payload any, target string, out *[]map[string]any) {
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			collectTyped(item, target, out)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			collectTyped(graph, target, out)
		}
		if typeMatches(v["@type"], target) {
			*out = append(*out, v)
		}
	}
}

// typeMatches handles both "@type": "Product" and "@type": ["Product", ...]
func typeMatches(t any, target string) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, target)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, target) {
				return true
			}
		}
	}
	return false
}

// jsonString reads a string-valued field, tolerating numeric values
func jsonString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// jsonFloat reads a numeric field, tolerating string-encoded numbers
func jsonFloat(obj map[string]any, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// jsonObject reads a nested object field; schema.org allows single objects
// or arrays in most positions, so the first array element is accepted too
func jsonObject(obj map[string]any, key string) map[string]any {
	switch v := obj[key].(type) {
	case map[string]any:
		return v
	case []any:
		if len(v) > 0 {
			if m, ok := v[0].(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// jsonStrings reads a field that may be a single string or an array of them
func jsonStrings(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// structuredProduct holds the fields the structured-data pass can supply
// for a product page; empty fields fall through to the markup pass.
type structuredProduct struct {
	Title         string
	Description   string
	Brand         string
	SKU           string
	Price         *int64
	Availability  string // raw schema.org availability value, "" if absent
	ImageURLs     []string
	RatingAverage float64
	RatingCount   int
}

// parseStructuredProduct selects the first Product object and flattens the
// fields this pipeline cares about. Returns nil when no usable object exists.
func parseStructuredProduct(doc *goquery.Document) *structuredProduct {
	objects := structuredObjects(doc, "Product")
	if len(objects) == 0 {
		return nil
	}
	obj := objects[0]

	p := &structuredProduct{
		Title:       jsonString(obj, "name"),
		Description: jsonString(obj, "description"),
		SKU:         jsonString(obj, "sku"),
		ImageURLs:   jsonStrings(obj, "image"),
	}

	if brand := jsonObject(obj, "brand"); brand != nil {
		p.Brand = jsonString(brand, "name")
	} else {
		p.Brand = jsonString(obj, "brand")
	}

	if offers := jsonObject(obj, "offers"); offers != nil {
		if f, ok := jsonFloat(offers, "price"); ok {
			minor := int64(f*100 + 0.5)
			p.Price = &minor
		} else if raw := jsonString(offers, "price"); raw != "" {
			p.Price = ParsePrice(raw)
		}
		p.Availability = jsonString(offers, "availability")
	}

	if rating := jsonObject(obj, "aggregateRating"); rating != nil {
		if f, ok := jsonFloat(rating, "ratingValue"); ok {
			p.RatingAverage = f
		}
		if f, ok := jsonFloat(rating, "reviewCount"); ok {
			p.RatingCount = int(f)
		}
	}

	return p
}

// structuredReview is one Review object flattened for the review extractor
type structuredReview struct {
	ID     string
	Rating float64
	Author string
	Title  string
	Body   string
	Date   string
}

// parseStructuredReviews collects Review objects both top-level and nested
// under a Product's "review" field.
func parseStructuredReviews(doc *goquery.Document) []structuredReview {
	objects := structuredObjects(doc, "Review")
	for _, product := range structuredObjects(doc, "Product") {
		var nested []map[string]any
		collectTyped(product["review"], "Review", &nested)
		objects = append(objects, nested...)
	}

	var out []structuredReview
	for _, obj := range objects {
		r := structuredReview{
			ID:     jsonString(obj, "@id"),
			Author: jsonString(obj, "author"),
			Title:  jsonString(obj, "name"),
			Body:   jsonString(obj, "reviewBody"),
			Date:   jsonString(obj, "datePublished"),
		}
		if author := jsonObject(obj, "author"); author != nil {
			r.Author = jsonString(author, "name")
		}
		if rating := jsonObject(obj, "reviewRating"); rating != nil {
			if f, ok := jsonFloat(rating, "ratingValue"); ok {
				r.Rating = f
			}
		}
		out = append(out, r)
	}
	return out
}
