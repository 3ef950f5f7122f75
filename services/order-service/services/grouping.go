package services

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is a checkout line resolved against its product's category.
type OrderLine struct {
	ProductID    uuid.UUID
	VariantID    *uuid.UUID
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	CategoryID   uuid.UUID
	CategoryName string
}

// CategoryGroup is the set of lines that become one sub-order.
type CategoryGroup struct {
	CategoryID   uuid.UUID
	CategoryName string
	Lines        []OrderLine
	Subtotal     decimal.Decimal
}

// GroupByCategory buckets lines by category. Groups come out in the order their category is
// first seen and lines keep their input order; Subtotal is the sum of price x quantity.
func GroupByCategory(lines []OrderLine) []CategoryGroup {
	groups := make([]CategoryGroup, 0)
	index := make(map[uuid.UUID]int)

	for _, line := range lines {
		i, ok := index[line.CategoryID]
		if !ok {
			i = len(groups)
			index[line.CategoryID] = i
			groups = append(groups, CategoryGroup{
				CategoryID:   line.CategoryID,
				CategoryName: line.CategoryName,
				Subtotal:     decimal.Zero,
			})
		}
		groups[i].Lines = append(groups[i].Lines, line)
		groups[i].Subtotal = groups[i].Subtotal.Add(line.Price.Mul(line.Quantity))
	}
	return groups
}
