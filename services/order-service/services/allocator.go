package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// AllocationScope narrows the batches a demand may draw from. Single-store deduction pins a
// store; checkout pins a variant and lets the allocator pick stores.
type AllocationScope struct {
	storeID   *uuid.UUID
	variantID *uuid.UUID
	byVariant bool
}

// StoreScope limits allocation to one store, any variant.
func StoreScope(storeID uuid.UUID) AllocationScope {
	return AllocationScope{storeID: &storeID}
}

// VariantScope limits allocation to one variant across every store. A nil variantID matches
// only batches without a variant.
func VariantScope(variantID *uuid.UUID) AllocationScope {
	return AllocationScope{variantID: variantID, byVariant: true}
}

// StoreVariantScope limits allocation to one variant in one store.
func StoreVariantScope(storeID uuid.UUID, variantID *uuid.UUID) AllocationScope {
	return AllocationScope{storeID: &storeID, variantID: variantID, byVariant: true}
}

func (s AllocationScope) matches(b *models.InventoryBatch) bool {
	if s.storeID != nil && b.StoreID != *s.storeID {
		return false
	}
	if s.byVariant && !b.SameVariant(s.variantID) {
		return false
	}
	return true
}

// AllocationEntry is one batch deduction.
type AllocationEntry struct {
	ProductID uuid.UUID
	BatchID   uuid.UUID
	StoreID   uuid.UUID
	Quantity  decimal.Decimal
}

// AllocationPlan lists deductions in the order they must be applied.
type AllocationPlan []AllocationEntry

// Total sums every entry of the plan.
func (p AllocationPlan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p {
		total = total.Add(e.Quantity)
	}
	return total
}

// eligibleBatches returns the in-scope batches with stock, sorted FEFO when the product
// expires and FIFO otherwise. Expiring products only offer batches that expire after now.
func eligibleBatches(p *models.Product, scope AllocationScope, now time.Time) []models.InventoryBatch {
	out := make([]models.InventoryBatch, 0, len(p.Batches))
	for i := range p.Batches {
		b := &p.Batches[i]
		if !scope.matches(b) || !b.Quantity.IsPositive() {
			continue
		}
		if p.HasExpiry && (b.ExpiryDate == nil || !b.ExpiryDate.After(now)) {
			continue
		}
		out = append(out, *b)
	}

	if p.HasExpiry {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(*out[j].ExpiryDate) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}
	return out
}

// AvailableQuantity sums the eligible stock of p within scope.
func AvailableQuantity(p *models.Product, scope AllocationScope, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, b := range eligibleBatches(p, scope, now) {
		total = total.Add(b.Quantity)
	}
	return total
}

// Allocate plans how demand is taken from p's batches within scope. Entries sum exactly to
// demand. A non-positive demand yields an empty plan. Nothing is written.
func Allocate(p *models.Product, scope AllocationScope, demand decimal.Decimal, now time.Time) (AllocationPlan, error) {
	if !demand.IsPositive() {
		return AllocationPlan{}, nil
	}

	batches := eligibleBatches(p, scope, now)

	available := decimal.Zero
	for _, b := range batches {
		available = available.Add(b.Quantity)
	}
	if available.LessThan(demand) {
		return nil, apperrors.ErrInsufficientStock.WithMessage(fmt.Sprintf(
			"%s does not have enough stock (requested: %s, available: %s).",
			p.Name, demand.String(), available.String(),
		))
	}

	plan := make(AllocationPlan, 0, len(batches))
	remaining := demand
	for _, b := range batches {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(b.Quantity, remaining)
		plan = append(plan, AllocationEntry{
			ProductID: p.ID,
			BatchID:   b.ID,
			StoreID:   b.StoreID,
			Quantity:  take,
		})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}
