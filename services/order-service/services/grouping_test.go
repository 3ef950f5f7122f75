package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

func TestGroupByCategory_FirstSeenOrder(t *testing.T) {
	fruit, dairy := uuid.New(), uuid.New()
	lines := []services.OrderLine{
		{ProductID: uuid.New(), Quantity: dec("2"), Price: dec("30"), CategoryID: dairy, CategoryName: "Dairy"},
		{ProductID: uuid.New(), Quantity: dec("1.5"), Price: dec("100"), CategoryID: fruit, CategoryName: "Fruit"},
		{ProductID: uuid.New(), Quantity: dec("1"), Price: dec("45"), CategoryID: dairy, CategoryName: "Dairy"},
	}

	groups := services.GroupByCategory(lines)
	require.Len(t, groups, 2)

	assert.Equal(t, dairy, groups[0].CategoryID)
	assert.Equal(t, "Dairy", groups[0].CategoryName)
	require.Len(t, groups[0].Lines, 2)
	assert.Equal(t, lines[0].ProductID, groups[0].Lines[0].ProductID)
	assert.Equal(t, lines[2].ProductID, groups[0].Lines[1].ProductID)
	assert.True(t, groups[0].Subtotal.Equal(dec("105")))

	assert.Equal(t, fruit, groups[1].CategoryID)
	assert.True(t, groups[1].Subtotal.Equal(dec("150")))
}

func TestGroupByCategory_Empty(t *testing.T) {
	assert.Empty(t, services.GroupByCategory(nil))
}
