package domain

// Product is a catalog entry as returned by barcode resolution.
// EstimatedPrice is the cheapest known offer in yen.
type Product struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Brand          *string `json:"brand"`
	Category       *string `json:"category"`
	CoverImageURL  *string `json:"cover_image_url"`
	Description    *string `json:"description"`
	WeightG        *int    `json:"weight_g"`
	EstimatedPrice *int64  `json:"estimated_price,omitempty"`
}

type Shop struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

type Offer struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	ShopID    string `json:"shop_id"`
	PriceJPY  *int64 `json:"price_jpy"`
}
