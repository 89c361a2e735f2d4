package domain

import "slices"

// Product is a catalog entry offered by a farmer. Price is in minor units.
type Product struct {
	ID       string `json:"id"`
	FarmerID string `json:"farmer_id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
	Stock    int    `json:"stock"`
}

// CartItem is a product snapshot plus the requested quantity.
type CartItem struct {
	ProductID string `json:"product_id"`
	FarmerID  string `json:"farmer_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Price     int64  `json:"price"`
	ImageURL  string `json:"image_url,omitempty"`
	Quantity  int    `json:"quantity"`
}

// LineTotal returns price times quantity.
func (i CartItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart is the ordered list of line items stored under one key.
// Items keep the order in which products were first added.
type Cart struct {
	Key   string     `json:"-"`
	Items []CartItem `json:"items"`
}

// NewCart returns a cart for key holding a copy of items.
func NewCart(key string, items []CartItem) Cart {
	return Cart{Key: key, Items: slices.Clone(items)}
}

// Subtotal sums the line totals.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line item for productID and whether it exists.
func (c Cart) Find(productID string) (CartItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

func (c Cart) indexOf(productID string) int {
	return slices.IndexFunc(c.Items, func(item CartItem) bool {
		return item.ProductID == productID
	})
}

// WithItem adds quantity units of p. An existing line is incremented and
// refreshed from p; otherwise a new line is appended. quantity <= 0 returns
// the cart unchanged.
func (c Cart) WithItem(p Product, quantity int) Cart {
	if quantity <= 0 {
		return c
	}

	items := slices.Clone(c.Items)
	if i := c.indexOf(p.ID); i >= 0 {
		line := itemFromProduct(p, items[i].Quantity+quantity)
		items[i] = line
	} else {
		items = append(items, itemFromProduct(p, quantity))
	}
	return Cart{Key: c.Key, Items: items}
}

// WithoutItem drops the line for productID, if any.
func (c Cart) WithoutItem(productID string) Cart {
	i := c.indexOf(productID)
	if i < 0 {
		return c
	}
	return Cart{Key: c.Key, Items: slices.Delete(slices.Clone(c.Items), i, i+1)}
}

// WithQuantity sets the quantity of productID. Values below 1 remove the line.
func (c Cart) WithQuantity(productID string, quantity int) Cart {
	if quantity < 1 {
		return c.WithoutItem(productID)
	}
	i := c.indexOf(productID)
	if i < 0 {
		return c
	}
	items := slices.Clone(c.Items)
	items[i].Quantity = quantity
	return Cart{Key: c.Key, Items: items}
}

// Normalize drops lines with a missing product id or a quantity below 1 and
// folds duplicate product ids into the first occurrence. It is applied to
// values read back from storage.
func (c Cart) Normalize() Cart {
	items := make([]CartItem, 0, len(c.Items))
	index := make(map[string]int, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, item)
	}
	return Cart{Key: c.Key, Items: items}
}

func itemFromProduct(p Product, quantity int) CartItem {
	return CartItem{
		ProductID: p.ID,
		FarmerID:  p.FarmerID,
		Name:      p.Name,
		Unit:      p.Unit,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  quantity,
	}
}
