package domain

import (
	"fmt"
	"time"
)

// ItemID is a unique identifier for a collection item.
type ItemID string

// String returns the string representation of the ItemID.
func (id ItemID) String() string {
	return string(id)
}

// Category identifies which kind of collection item a CollectionItem holds.
type Category string

const (
	CategoryPSACard       Category = "psa-card"
	CategoryRawCard       Category = "raw-card"
	CategorySealedProduct Category = "sealed-product"
)

// Categories returns all categories in canonical grouping order.
func Categories() []Category {
	return []Category{CategoryPSACard, CategoryRawCard, CategorySealedProduct}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPSACard, CategoryRawCard, CategorySealedProduct:
		return true
	}
	return false
}

// Label returns a human-readable category name.
func (c Category) Label() string {
	switch c {
	case CategoryPSACard:
		return "PSA graded card"
	case CategoryRawCard:
		return "raw card"
	case CategorySealedProduct:
		return "sealed product"
	}
	return string(c)
}

// GradedDetails holds the payload of a graded card.
type GradedDetails struct {
	Grade      int    `json:"grade"`
	CertNumber string `json:"certNumber,omitempty"`
	Grader     string `json:"grader,omitempty"`
}

// RawDetails holds the payload of an ungraded card.
type RawDetails struct {
	Condition string `json:"condition,omitempty"`
}

// SealedDetails holds the payload of a sealed product.
type SealedDetails struct {
	ProductType string `json:"productType,omitempty"`
}

// CollectionItem is a single owned card or product. Category is the tag; exactly
// one of Graded, Raw or Sealed is set and must agree with it.
type CollectionItem struct {
	ID        ItemID    `json:"id"`
	Category  Category  `json:"category"`
	Name      string    `json:"name"`
	SetName   string    `json:"setName,omitempty"`
	Price     float64   `json:"price"`
	DateAdded time.Time `json:"dateAdded,omitempty"`

	Graded *GradedDetails `json:"graded,omitempty"`
	Raw    *RawDetails    `json:"raw,omitempty"`
	Sealed *SealedDetails `json:"sealed,omitempty"`
}

// NewGradedCard creates a graded card item.
func NewGradedCard(id ItemID, name string, price float64, details GradedDetails) CollectionItem {
	return CollectionItem{ID: id, Category: CategoryPSACard, Name: name, Price: price, Graded: &details}
}

// NewRawCard creates a raw card item.
func NewRawCard(id ItemID, name string, price float64, details RawDetails) CollectionItem {
	return CollectionItem{ID: id, Category: CategoryRawCard, Name: name, Price: price, Raw: &details}
}

// NewSealedProduct creates a sealed product item.
func NewSealedProduct(id ItemID, name string, price float64, details SealedDetails) CollectionItem {
	return CollectionItem{ID: id, Category: CategorySealedProduct, Name: name, Price: price, Sealed: &details}
}

// Validate checks that the item carries an ID and that its payload matches its category tag.
func (it CollectionItem) Validate() error {
	if it.ID == "" {
		return ErrMissingItemID
	}
	if !it.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, it.Category)
	}

	set := 0
	if it.Graded != nil {
		set++
	}
	if it.Raw != nil {
		set++
	}
	if it.Sealed != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: item %s has %d payloads", ErrCategoryMismatch, it.ID, set)
	}

	switch {
	case it.Graded != nil && it.Category != CategoryPSACard,
		it.Raw != nil && it.Category != CategoryRawCard,
		it.Sealed != nil && it.Category != CategorySealedProduct:
		return fmt.Errorf("%w: item %s tagged %s", ErrCategoryMismatch, it.ID, it.Category)
	}
	return nil
}

// ItemIDs returns the IDs of items in their given order.
func ItemIDs(items []CollectionItem) []ItemID {
	ids := make([]ItemID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
