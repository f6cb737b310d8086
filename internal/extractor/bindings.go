package extractor

// Profile is the declarative description of one retailer's extraction:
// entry points, URL claims, and ordered selector lists per field. A Profile
// compiles into a Set via NewSetFromProfile.
type Profile struct {
	Slug        string
	BaseURL     string
	EntryPoints []string

	ListingURLPatterns []string
	ProductURLPatterns []string
	ReviewURLPatterns  []string

	Listing ListingSelectors
	Product ProductSelectors
	Review  ReviewSelectors
}

// NewSetFromProfile compiles a Profile into an extractor Set
func NewSetFromProfile(p Profile) *Set {
	set := &Set{
		Slug:        p.Slug,
		EntryPoints: p.EntryPoints,
	}
	if p.Listing.Item != "" {
		set.Listings = append(set.Listings, &SelectorListingExtractor{
			Slug:        p.Slug,
			BaseURL:     p.BaseURL,
			URLPatterns: p.ListingURLPatterns,
			Selectors:   p.Listing,
		})
	}
	set.Products = append(set.Products, &SelectorProductExtractor{
		Slug:        p.Slug,
		URLPatterns: p.ProductURLPatterns,
		Selectors:   p.Product,
	})
	set.Reviews = append(set.Reviews, &SelectorReviewExtractor{
		Slug:        p.Slug,
		URLPatterns: p.ReviewURLPatterns,
		Selectors:   p.Review,
	})
	return set
}

// RegisterProfile binds a profile's compiled set under the profile's slug
func RegisterProfile(registry *Registry, p Profile) {
	registry.Register(p.Slug, func() *Set { return NewSetFromProfile(p) })
}

// builtinProfiles are the retailer bindings shipped with the worker. The
// selector lists are ordered fallbacks: sites shuffle their markup between
// redesigns, so older selectors stay behind the current ones.
var builtinProfiles = []Profile{
	{
		Slug:    "bm",
		BaseURL: "https://www.bmstores.co.uk",
		EntryPoints: []string{
			"https://www.bmstores.co.uk/products/food-drink",
			"https://www.bmstores.co.uk/products/grocery",
			"https://www.bmstores.co.uk/products/health-beauty",
			"https://www.bmstores.co.uk/products/cleaning",
		},
		ListingURLPatterns: []string{"/products/"},
		ProductURLPatterns: []string{"/product/"},
		Listing: ListingSelectors{
			Item:     "div.product-list article.product-tile",
			Link:     []string{"a.product-tile__link", "h3 a"},
			Category: []string{"h1.category-title", "nav.breadcrumb li:last-child"},
		},
		Product: ProductSelectors{
			Title:       []string{"h1.product-detail__title", "h1[itemprop='name']", "h1"},
			Description: []string{"div.product-detail__description", "div[itemprop='description']"},
			Brand:       []string{"span.product-detail__brand", "a.brand-link"},
			Price:       []string{"span.product-detail__price--now", "span.price", "p.price"},
			WasPrice:    []string{"span.product-detail__price--was", "span.was-price"},
			OutOfStock:  []string{"p.out-of-stock", "button[disabled].add-to-basket"},
			Images:      []string{"div.product-detail__gallery img", "img.product-image"},
			ExternalID:  []string{"div.product-detail[data-sku]"},
			IDAttr:      "data-sku",
		},
		Review: ReviewSelectors{
			Item:     "div.review-list div.review",
			Rating:   []string{"span.review__rating", "div.stars"},
			Author:   []string{"span.review__author"},
			Title:    []string{"h4.review__title"},
			Body:     []string{"p.review__body"},
			Date:     []string{"time.review__date"},
			Verified: []string{"span.review__verified"},
			Helpful:  []string{"span.review__helpful"},
			IDAttr:   "data-review-id",
		},
	},
	{
		Slug:    "homebargains",
		BaseURL: "https://www.homebargains.co.uk",
		EntryPoints: []string{
			"https://www.homebargains.co.uk/collections/food-and-drink",
			"https://www.homebargains.co.uk/collections/household",
		},
		ListingURLPatterns: []string{"/collections/"},
		ProductURLPatterns: []string{"/products/"},
		Listing: ListingSelectors{
			Item:     "ul.collection-grid li.grid__item",
			Link:     []string{"a.full-unstyled-link", "a.grid-product__link"},
			Category: []string{"h1.collection-hero__title"},
		},
		Product: ProductSelectors{
			Title:       []string{"h1.product__title", "h1"},
			Description: []string{"div.product__description"},
			Brand:       []string{"p.product__vendor a", "p.product__vendor"},
			Price:       []string{"span.price-item--sale", "span.price-item--regular"},
			WasPrice:    []string{"s.price-item--regular"},
			OutOfStock:  []string{"span.badge--sold-out", "button[name='add'][disabled]"},
			Images:      []string{"div.product__media img"},
			ExternalID:  []string{"div.product[data-product-id]"},
			IDAttr:      "data-product-id",
		},
		Review: ReviewSelectors{
			Item:   "div.jdgm-rev",
			Rating: []string{"span.jdgm-rev__rating"},
			Author: []string{"span.jdgm-rev__author"},
			Title:  []string{"b.jdgm-rev__title"},
			Body:   []string{"div.jdgm-rev__body"},
			Date:   []string{"span.jdgm-rev__timestamp"},
			IDAttr: "data-review-id",
		},
	},
	{
		// Generic profile for retailers with well-formed JSON-LD; the markup
		// selectors cover the most common storefront conventions only.
		Slug:    "generic",
		BaseURL: "",
		Product: ProductSelectors{
			Title:       []string{"h1[itemprop='name']", "h1.product-title", "h1"},
			Description: []string{"div[itemprop='description']", "div.product-description"},
			Brand:       []string{"span[itemprop='brand']", "a.brand"},
			Price:       []string{"span[itemprop='price']", "span.price", ".product-price"},
			OutOfStock:  []string{".out-of-stock", ".sold-out"},
			Images:      []string{"img[itemprop='image']", "img.product-image"},
		},
		Review: ReviewSelectors{
			Item:   "div[itemprop='review']",
			Rating: []string{"span[itemprop='ratingValue']"},
			Author: []string{"span[itemprop='author']"},
			Body:   []string{"p[itemprop='reviewBody']"},
		},
	},
}

// RegisterBuiltins populates the registry with the shipped retailer profiles
func RegisterBuiltins(registry *Registry) {
	for _, p := range builtinProfiles {
		RegisterProfile(registry, p)
	}
}
