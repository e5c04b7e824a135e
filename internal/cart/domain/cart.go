package domain

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must not be negative")

// Cart maps product id to quantity. It is a value: every mutation returns a
// new Cart and never touches the receiver, so a Cart handed to a reader stays
// consistent. The zero value is an empty cart.
type Cart struct {
	items map[string]int
}

type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Catalog is a read-only price snapshot keyed by product id.
type Catalog map[string]decimal.Decimal

func Empty() Cart {
	return Cart{}
}

// FromItems builds a cart from a stored mapping. Entries with an empty id or
// a non-positive quantity are dropped.
func FromItems(items map[string]int) Cart {
	c := Cart{items: make(map[string]int, len(items))}
	for id, qty := range items {
		if id == "" || qty <= 0 {
			continue
		}
		c.items[id] = qty
	}
	return c
}

func (c Cart) clone() map[string]int {
	m := make(map[string]int, len(c.items)+1)
	for id, qty := range c.items {
		m[id] = qty
	}
	return m
}

// Add returns a cart with one more unit of productID.
func (c Cart) Add(productID string) Cart {
	m := c.clone()
	m[productID]++
	return Cart{items: m}
}

// SetQuantity returns a cart with productID set to qty. Zero removes the line.
func (c Cart) SetQuantity(productID string, qty int) (Cart, error) {
	if qty < 0 {
		return c, ErrInvalidQuantity
	}
	m := c.clone()
	if qty == 0 {
		delete(m, productID)
	} else {
		m[productID] = qty
	}
	return Cart{items: m}, nil
}

func (c Cart) Quantity(productID string) int {
	return c.items[productID]
}

// Count sums positive quantities.
func (c Cart) Count() int {
	n := 0
	for _, qty := range c.items {
		if qty > 0 {
			n += qty
		}
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return c.Count() == 0
}

// TotalAmount prices the cart against catalog. Products missing from the
// catalog are left out and the sum is floored to cents.
func (c Cart) TotalAmount(catalog Catalog) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range c.items {
		if qty <= 0 {
			continue
		}
		price, ok := catalog[id]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.RoundFloor(2)
}

// Items returns a copy of the mapping.
func (c Cart) Items() map[string]int {
	return c.clone()
}

// Lines returns the positive lines ordered by product id.
func (c Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.items))
	for id, qty := range c.items {
		if qty > 0 {
			lines = append(lines, Line{ProductID: id, Quantity: qty})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (c Cart) MarshalJSON() ([]byte, error) {
	if c.items == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.items)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*c = FromItems(m)
	return nil
}
