package record

import "time"

// Strategy identifies which extraction pass produced a value
type Strategy string

const (
	StrategyStructuredData Strategy = "structured-data"
	StrategyMarkup         Strategy = "markup"
)

// Kind identifies the canonical record shape
type Kind string

const (
	KindListing Kind = "listing"
	KindProduct Kind = "product"
	KindReview  Kind = "review"
)

// Metadata is carried by every extraction result
type Metadata struct {
	RetailerSlug string    `json:"retailer_slug"`
	SourceURL    string    `json:"source_url"`
	ExtractedAt  time.Time `json:"extracted_at"`
	Strategy     Strategy  `json:"strategy"`
}

// ListingRef is a discovered product page reference
type ListingRef struct {
	URL      string   `json:"url"`
	Category string   `json:"category,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// ProductRecord is a fully extracted product detail page.
// Prices are minor currency units; nil means no price was found.
type ProductRecord struct {
	ExternalID    string   `json:"external_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Price         *int64   `json:"price,omitempty"`
	WasPrice      *int64   `json:"was_price,omitempty"`
	InStock       bool     `json:"in_stock"`
	WeightGrams   int      `json:"weight_grams,omitempty"`
	PackQuantity  int      `json:"pack_quantity,omitempty"`
	ImageURLs     []string `json:"image_urls,omitempty"`
	RatingAverage float64  `json:"rating_average,omitempty"`
	RatingCount   int      `json:"rating_count,omitempty"`
	Metadata      Metadata `json:"metadata"`
}

// ReviewRecord is one extracted customer review
type ReviewRecord struct {
	ExternalID       string    `json:"external_id"`
	Rating           float64   `json:"rating"`
	Author           string    `json:"author,omitempty"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body,omitempty"`
	ReviewedAt       time.Time `json:"reviewed_at,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	HelpfulVotes     int       `json:"helpful_votes"`
	Metadata         Metadata  `json:"metadata"`
}
