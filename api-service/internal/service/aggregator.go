package service

import "github.com/rei1089/ec-ring/api-service/internal/domain"

// UnknownShop labels lines whose offer has no shop, or that have no offer.
const UnknownShop = "Unknown Shop"

// AggregateCart prices lines and groups them by shop display name. Groups
// appear in the order their first line appears; two shops sharing a name
// end up in one group. A line without a price still shows, with a total of 0.
func AggregateCart(cart *domain.Cart, lines []domain.CartLine) *domain.CartView {
	view := &domain.CartView{
		Cart:       cart,
		Items:      make([]domain.LineItem, 0, len(lines)),
		ShopGroups: make([]domain.ShopGroup, 0),
	}
	groupIndex := make(map[string]int)

	for _, l := range lines {
		shop := UnknownShop
		if l.ShopName != nil && *l.ShopName != "" {
			shop = *l.ShopName
		}

		var lineTotal int64
		if l.UnitPrice != nil {
			lineTotal = *l.UnitPrice * int64(l.Item.Quantity)
		}

		item := domain.LineItem{
			ID:              l.Item.ID,
			ProductID:       l.Item.ProductID,
			Title:           l.Product.Title,
			Brand:           l.Product.Brand,
			CoverImageURL:   l.Product.CoverImageURL,
			WeightG:         l.Product.WeightG,
			Quantity:        l.Item.Quantity,
			SelectedOfferID: l.Item.SelectedOfferID,
			Note:            l.Item.Note,
			ShopName:        shop,
			UnitPrice:       l.UnitPrice,
			LineTotal:       lineTotal,
		}
		view.Items = append(view.Items, item)

		i, ok := groupIndex[shop]
		if !ok {
			i = len(view.ShopGroups)
			groupIndex[shop] = i
			view.ShopGroups = append(view.ShopGroups, domain.ShopGroup{ShopName: shop})
		}
		g := &view.ShopGroups[i]
		g.Items = append(g.Items, item)
		g.Subtotal += lineTotal
		view.GrandTotal += lineTotal

		if l.Product.WeightG != nil {
			view.TotalWeightG += *l.Product.WeightG * l.Item.Quantity
		} else {
			view.ItemsMissingWeight++
		}
	}
	return view
}
