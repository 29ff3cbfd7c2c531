package models

// CartLine is one line of the cart payload a client submits at checkout.
type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

type Cart struct {
	Lines       []CartLine      `json:"lines"`
	Shipping    ShippingAddress `json:"shipping"`
	TotalAmount *float64        `json:"totalAmount"`
}
