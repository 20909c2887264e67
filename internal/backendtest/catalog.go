package backendtest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
)

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

func paginate(total, page, limit int) (lo, hi int, p catalog.Pagination) {
	p = catalog.Pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit}
	lo = (page - 1) * limit
	if lo > total {
		lo = total
	}
	hi = lo + limit
	if hi > total {
		hi = total
	}
	return lo, hi, p
}

func (b *Backend) listProducts(c *gin.Context) {
	search := strings.ToLower(c.Query("search"))
	categoryID, _ := strconv.ParseInt(c.Query("categoryId"), 10, 64)
	sortBy := c.DefaultQuery("sortBy", "createdAt")
	desc := c.Query("sortOrder") == "desc"

	b.mu.Lock()
	matched := make([]catalog.Product, 0, len(b.products))
	for _, p := range b.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		if categoryID > 0 && p.CategoryID != categoryID {
			continue
		}
		matched = append(matched, p)
	}
	b.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			i, j = j, i
		}
		switch sortBy {
		case "price":
			return matched[i].Price.LessThan(matched[j].Price)
		case "title":
			return matched[i].Title < matched[j].Title
		default:
			return matched[i].ID < matched[j].ID
		}
	})

	page, limit := pageParams(c)
	lo, hi, p := paginate(len(matched), page, limit)
	ok(c, http.StatusOK, matched[lo:hi], &p)
}

func (b *Backend) getProduct(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if p.ID == id {
			ok(c, http.StatusOK, p, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Product not found")
}

func (b *Backend) listCategories(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(c, http.StatusOK, b.categories, nil)
}

func (b *Backend) getCategory(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cat := range b.categories {
		if cat.ID == id {
			ok(c, http.StatusOK, cat, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Category not found")
}
