package domain

import "time"

type CartStatus string

const (
	CartStatusActive  CartStatus = "active"
	CartStatusOrdered CartStatus = "ordered"
)

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    CartStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type CartItem struct {
	ID              string    `json:"id"`
	CartID          string    `json:"cart_id"`
	ProductID       string    `json:"product_id"`
	Quantity        int       `json:"quantity"`
	SelectedOfferID *string   `json:"selected_offer_id"`
	Note            *string   `json:"note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewCartItem is what a client asks to put in its cart.
type NewCartItem struct {
	ProductID       string
	Quantity        int
	SelectedOfferID *string
}

// CartItemUpdate holds the fields a PATCH may change; nil leaves a field as is.
type CartItemUpdate struct {
	Quantity *int
	Note     *string
}

// CartLine is a cart item joined with its product and the selected offer.
// ShopName and UnitPrice are nil when no offer is selected or the offer has
// no shop or price.
type CartLine struct {
	Item      CartItem
	Product   Product
	ShopName  *string
	UnitPrice *int64
}

type LineItem struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"product_id"`
	Title           string  `json:"title"`
	Brand           *string `json:"brand"`
	CoverImageURL   *string `json:"cover_image_url"`
	WeightG         *int    `json:"weight_g"`
	Quantity        int     `json:"quantity"`
	SelectedOfferID *string `json:"selected_offer_id"`
	Note            *string `json:"note"`
	ShopName        string  `json:"shop_name"`
	UnitPrice       *int64  `json:"unit_price"`
	LineTotal       int64   `json:"line_total"`
}

type ShopGroup struct {
	ShopName string     `json:"shopName"`
	Items    []LineItem `json:"items"`
	Subtotal int64      `json:"subtotal"`
}

// CartView is the priced, shop-grouped projection of a cart. It is derived on
// every read and never stored.
type CartView struct {
	Cart       *Cart       `json:"cart"`
	Items      []LineItem  `json:"items"`
	ShopGroups []ShopGroup `json:"shopGroups"`
	GrandTotal int64       `json:"grandTotal"`

	// TotalWeightG sums weight x quantity over items with a known weight.
	TotalWeightG int `json:"totalWeightG"`

	// ItemsMissingWeight counts lines left out of TotalWeightG.
	ItemsMissingWeight int `json:"itemsMissingWeight"`
}
