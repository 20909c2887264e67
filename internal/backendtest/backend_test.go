package backendtest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/api"
	"github.com/vasiliy-maslov/skincare-storefront/internal/backendtest"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/session"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/memory"
)

func newClient(t *testing.T) (*backendtest.Backend, *api.Client) {
	t.Helper()
	b := backendtest.Start(t)
	return b, api.New(api.Config{BaseURL: b.URL()}, session.NewVault(memory.New()))
}

func TestBackend_ProductListing(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	page, err := client.Products(ctx, catalog.ProductQuery{SortBy: catalog.SortByPrice, SortOrder: catalog.SortDesc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Vitamin C Serum", page.Products[0].Title)
	assert.Equal(t, catalog.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, page.Pagination)
	assert.True(t, page.Pagination.HasNext())

	page, err = client.Products(ctx, catalog.ProductQuery{Search: "serum", CategoryID: 1})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)

	_, err = client.Product(ctx, 99)
	assert.True(t, api.IsStatus(err, http.StatusNotFound))

	categories, err := client.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}

func TestBackend_OrdersRequireAuth(t *testing.T) {
	_, client := newClient(t)

	_, err := client.Orders(context.Background(), order.Query{})
	require.ErrorIs(t, err, api.ErrSessionExpired)
}
