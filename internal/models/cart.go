package models

// LineItem is one entry in a POS cart. Prices are whole rupees.
type LineItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	IsCombo   bool   `json:"isCombo"`
}

// Total returns unitPrice x quantity for the line.
func (l LineItem) Total() int {
	return l.UnitPrice * l.Quantity
}

// CartTotal sums every line's total.
func CartTotal(cart []LineItem) int {
	total := 0
	for _, line := range cart {
		total += line.Total()
	}
	return total
}
