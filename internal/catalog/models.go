package catalog

import "time"

// Product is a catalog entry in the products collection. Reviews are embedded
// and owned by the product; they are appended to, never rewritten.
type Product struct {
	ProductID string   `json:"product_id" bson:"product_id" validate:"required"`
	Name      string   `json:"name" bson:"name" validate:"required"`
	Category  string   `json:"category" bson:"category" validate:"required"`
	Price     float64  `json:"price" bson:"price" validate:"gte=0"`
	Stock     int      `json:"stock" bson:"stock" validate:"gte=0"`
	Reviews   []Review `json:"reviews" bson:"reviews"`
}

// Normalize makes an absent reviews list an explicit empty one so the stored
// field is always an array that $push can append to.
func (p *Product) Normalize() {
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
}

// Review is a single customer review embedded in a Product.
type Review struct {
	UserID  string    `json:"user_id" bson:"user_id"`
	Rating  float64   `json:"rating" bson:"rating"`
	Comment string    `json:"comment,omitempty" bson:"comment,omitempty"`
	Date    time.Time `json:"date" bson:"date"`
}

// ReviewInput carries the caller supplied fields of a new review. The date is
// assigned by the service when the review is written.
type ReviewInput struct {
	UserID  string  `json:"user_id" binding:"required"`
	Rating  float64 `json:"rating" binding:"required,gte=1,lte=5"`
	Comment string  `json:"comment"`
}

// ProductView is the projection returned by the category/price query.
type ProductView struct {
	Name  string  `json:"name" bson:"name"`
	Price float64 `json:"price" bson:"price"`
	Stock int     `json:"stock" bson:"stock"`
}

// RatedProduct is one row of the review-quality aggregation.
type RatedProduct struct {
	ProductID   string  `json:"product_id" bson:"_id"`
	ProductName string  `json:"product_name" bson:"product_name"`
	AvgRating   float64 `json:"avg_rating" bson:"avg_rating"`
}

// CategorySummary is one row of the per-category price summary.
type CategorySummary struct {
	Category     string  `json:"category" bson:"_id"`
	AvgPrice     float64 `json:"avg_price" bson:"avg_price"`
	ProductCount int     `json:"product_count" bson:"product_count"`
}

// UpdateResult reports how many documents a point update matched and modified.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// NotFound reports whether the update matched no document.
func (r UpdateResult) NotFound() bool { return r.Matched == 0 }

// ImportResult summarizes a bulk load.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
