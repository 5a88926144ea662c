package models

import (
	"strings"
	"time"
)

type Product struct {
	Name               string            `json:"name" bson:"name"`
	Price              string            `json:"price,omitempty" bson:"price,omitempty"`
	PriceNumeric       *float64          `json:"price_numeric,omitempty" bson:"price_numeric,omitempty"`
	Currency           string            `json:"currency,omitempty" bson:"currency,omitempty"`
	Rating             *float64          `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewCount        string            `json:"review_count,omitempty" bson:"review_count,omitempty"`
	ReviewCountNumeric *int              `json:"review_count_numeric,omitempty" bson:"review_count_numeric,omitempty"`
	ImageURL           string            `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Images             []string          `json:"images,omitempty" bson:"images,omitempty"`
	DetailURL          string            `json:"product_url,omitempty" bson:"product_url,omitempty"`
	CategoryPath       string            `json:"category_path,omitempty" bson:"category_path,omitempty"`
	ColorOptions       []ColorOption     `json:"color_options,omitempty" bson:"color_options,omitempty"`
	SizeOptions        []string          `json:"size_options,omitempty" bson:"size_options,omitempty"`
	Attributes         map[string]string `json:"product_details,omitempty" bson:"product_details,omitempty"`
	AboutThisItem      []string          `json:"about_this_item,omitempty" bson:"about_this_item,omitempty"`
	Description        string            `json:"description,omitempty" bson:"description,omitempty"`
	ShopName           string            `json:"shop_name,omitempty" bson:"shop_name,omitempty"`
	SoldCount          string            `json:"sold_count,omitempty" bson:"sold_count,omitempty"`
	Reviews            []Review          `json:"reviews,omitempty" bson:"reviews,omitempty"`
	Site               string            `json:"site,omitempty" bson:"site,omitempty"`
	SearchTerm         string            `json:"search_term,omitempty" bson:"search_term,omitempty"`
	Source             string            `json:"source,omitempty" bson:"source,omitempty"`
	ScrapedAt          time.Time         `json:"scraped_at" bson:"scraped_at"`
}

type ColorOption struct {
	Name  string `json:"color_name" bson:"color_name"`
	Price string `json:"color_price,omitempty" bson:"color_price,omitempty"`
}

type Review struct {
	Rating   int      `json:"rating" bson:"rating"`
	Comment  string   `json:"comment,omitempty" bson:"comment,omitempty"`
	User     string   `json:"user_name,omitempty" bson:"user_name,omitempty"`
	Time     int64    `json:"ctime,omitempty" bson:"ctime,omitempty"`
	TimeText string   `json:"time_text,omitempty" bson:"time_text,omitempty"`
	Images   []string `json:"images,omitempty" bson:"images,omitempty"`
	Variant  string   `json:"variant,omitempty" bson:"variant,omitempty"`
}

type Category struct {
	Name string `json:"category_name" bson:"name"`
	URL  string `json:"url,omitempty" bson:"source_url,omitempty"`
}

// Output is the document written per site and handed to the upsert writers.
type Output struct {
	RunID       string     `json:"run_id"`
	Site        string     `json:"site"`
	Backend     string     `json:"backend"`
	SearchTerms []string   `json:"search_terms"`
	Products    []Product  `json:"products"`
	Categories  []Category `json:"categories"`
}

type Key struct {
	DetailURL string
	Name      string
}

func NewProduct(name string) *Product {
	return &Product{
		Name:      strings.TrimSpace(name),
		ScrapedAt: time.Now(),
	}
}

func (p *Product) Key() Key {
	return Key{DetailURL: p.DetailURL, Name: p.Name}
}

func (p *Product) Valid() bool {
	return strings.TrimSpace(p.Name) != ""
}

func (p *Product) SetPrice(raw string, value float64, currency string) {
	p.Price = raw
	p.PriceNumeric = &value
	if currency != "" {
		p.Currency = currency
	}
}

func (p *Product) SetRating(value float64) {
	p.Rating = &value
}

func (p *Product) SetReviewCount(raw string, value int) {
	p.ReviewCount = raw
	p.ReviewCountNumeric = &value
}

// Merge copies every non-empty field of detail over p.
func (p *Product) Merge(detail *Product) {
	if detail == nil {
		return
	}
	if detail.Name != "" {
		p.Name = detail.Name
	}
	if detail.Price != "" {
		p.Price = detail.Price
		p.PriceNumeric = detail.PriceNumeric
	}
	if detail.Currency != "" {
		p.Currency = detail.Currency
	}
	if detail.Rating != nil {
		p.Rating = detail.Rating
	}
	if detail.ReviewCount != "" {
		p.ReviewCount = detail.ReviewCount
		p.ReviewCountNumeric = detail.ReviewCountNumeric
	}
	if detail.ImageURL != "" {
		p.ImageURL = detail.ImageURL
	}
	if len(detail.Images) > 0 {
		p.Images = detail.Images
	}
	if detail.DetailURL != "" {
		p.DetailURL = detail.DetailURL
	}
	if detail.CategoryPath != "" {
		p.CategoryPath = detail.CategoryPath
	}
	if len(detail.ColorOptions) > 0 {
		p.ColorOptions = detail.ColorOptions
	}
	if len(detail.SizeOptions) > 0 {
		p.SizeOptions = detail.SizeOptions
	}
	if len(detail.Attributes) > 0 {
		p.Attributes = detail.Attributes
	}
	if len(detail.AboutThisItem) > 0 {
		p.AboutThisItem = detail.AboutThisItem
	}
	if detail.Description != "" {
		p.Description = detail.Description
	}
	if detail.ShopName != "" {
		p.ShopName = detail.ShopName
	}
	if detail.SoldCount != "" {
		p.SoldCount = detail.SoldCount
	}
	if len(detail.Reviews) > 0 {
		p.Reviews = detail.Reviews
	}
}

// Filter drops records without a name and keeps source order.
func Filter(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

// DedupCategories keeps the first category per name, in order, up to limit.
func DedupCategories(cats []Category, limit int) []Category {
	seen := make(map[string]struct{}, len(cats))
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
