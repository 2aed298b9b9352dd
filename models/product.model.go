package models

import (
	"math"
	"strings"
	"time"
)

// Product categories
const (
	CategorySaree       = "saree"
	CategoryMens        = "mens"
	CategoryKids        = "kids"
	CategoryAccessories = "accessories"
	CategoryOther       = "other"
)

var categories = map[string]bool{
	CategorySaree:       true,
	CategoryMens:        true,
	CategoryKids:        true,
	CategoryAccessories: true,
	CategoryOther:       true,
}

// ValidCategory reports whether c is one of the known categories
func ValidCategory(c string) bool {
	return categories[c]
}

// Product represents an item in the catalogue
type Product struct {
	ID          string    `bson:"-" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Price       float64   `bson:"price" json:"price"`
	Category    string    `bson:"category" json:"category"`
	ImageURL    string    `bson:"imageUrl" json:"imageUrl"`
	Images      []string  `bson:"images" json:"images"`
	Stock       int       `bson:"stock" json:"stock"`
	Discount    float64   `bson:"discount" json:"discount"`
	Position    *int      `bson:"position,omitempty" json:"position,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

func (p *Product) GetID() string   { return p.ID }
func (p *Product) SetID(id string) { p.ID = id }

// Prepare fills creation defaults. count is the number of products already stored
// and becomes the position of a product created without one.
func (p *Product) Prepare(count int, now time.Time) {
	if p.Category == "" {
		p.Category = CategoryOther
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Position == nil {
		pos := count
		p.Position = &pos
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
}

// Validate checks field presence and ranges
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return &ValidationError{Field: "name", Message: "name is required"}
	case strings.TrimSpace(p.Description) == "":
		return &ValidationError{Field: "description", Message: "description is required"}
	case p.Price < 0:
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	case !ValidCategory(p.Category):
		return &ValidationError{Field: "category", Message: "unknown category " + p.Category}
	case p.Stock < 0:
		return &ValidationError{Field: "stock", Message: "stock must not be negative"}
	case p.Discount < 0 || p.Discount > 100:
		return &ValidationError{Field: "discount", Message: "discount must be between 0 and 100"}
	case p.Position != nil && *p.Position < 0:
		return &ValidationError{Field: "position", Message: "position must not be negative"}
	}
	return nil
}

// SortKey is the position used for display ordering
func (p *Product) SortKey() int {
	if p.Position == nil {
		return 0
	}
	return *p.Position
}

// SalePrice is the unit price after discount, rounded to two decimals
func (p *Product) SalePrice() float64 {
	if p.Discount <= 0 {
		return p.Price
	}
	return RoundPrice(p.Price * (1 - p.Discount/100))
}

// RoundPrice rounds an amount to two decimals
func RoundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
