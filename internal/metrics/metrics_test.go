package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/skincare-storefront/internal/metrics"
)

func TestObserveAPI(t *testing.T) {
	before := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("GET", "/products/{id}", "404"))
	metrics.ObserveAPI("GET", "/products/{id}", http.StatusNotFound, 12*time.Millisecond)
	after := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("GET", "/products/{id}", "404"))
	assert.Equal(t, before+1, after)

	beforeErr := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("POST", "/orders", "error"))
	metrics.ObserveAPI("POST", "/orders", 0, time.Millisecond)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("POST", "/orders", "error")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
