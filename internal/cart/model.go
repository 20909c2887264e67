package cart

import (
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
)

// Line is one product in the cart. A cart holds at most one line per
// product id and every quantity is at least 1.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type State struct {
	Lines     []Line          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	Loading   bool            `json:"isLoading"`
	Hydrated  bool            `json:"hydrated"`
	UserID    *int64          `json:"userId,omitempty"`
}

func totals(lines []Line) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		count += l.Quantity
	}
	return total, count
}

func findLine(lines []Line, productID int64) int {
	for i := range lines {
		if lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func removeLine(lines []Line, idx int) []Line {
	out := make([]Line, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...)
}

// normalize drops lines without a product or with a non-positive quantity
// and merges duplicates into the first occurrence.
func normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Product.ID == 0 || l.Quantity <= 0 {
			continue
		}
		if i := findLine(out, l.Product.ID); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	return append([]Line(nil), lines...)
}
