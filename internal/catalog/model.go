package catalog

import (
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Image        string `json:"image,omitempty"`
	ProductCount int    `json:"productCount,omitempty"`
}

// Product is read-only on the client. Price travels as a decimal string.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	SKU         string          `json:"sku,omitempty"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	CategoryID  int64           `json:"categoryId"`
	Category    *Category       `json:"category,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (p Pagination) HasNext() bool {
	return p.Page < p.Pages
}

type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type SortField string

const (
	SortByTitle     SortField = "title"
	SortByPrice     SortField = "price"
	SortByCreatedAt SortField = "createdAt"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ProductQuery mirrors the GET /products filters. Zero values are omitted.
type ProductQuery struct {
	Search     string    `json:"search,omitempty"`
	CategoryID int64     `json:"categoryId,omitempty"`
	SortBy     SortField `json:"sortBy,omitempty" validate:"omitempty,oneof=title price createdAt"`
	SortOrder  SortOrder `json:"sortOrder,omitempty" validate:"omitempty,oneof=asc desc"`
	Page       int       `json:"page,omitempty" validate:"gte=0"`
	Limit      int       `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID > 0 {
		v.Set("categoryId", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.SortBy != "" {
		v.Set("sortBy", string(q.SortBy))
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	return v
}
