package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/api"
	"github.com/vasiliy-maslov/skincare-storefront/internal/cart"
	"github.com/vasiliy-maslov/skincare-storefront/internal/checkout"
	"github.com/vasiliy-maslov/skincare-storefront/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// CheckoutErrorResponse carries what the shopper needs to see. PaymentID is
// set whenever money was captured.
type CheckoutErrorResponse struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Kind      checkout.Kind `json:"kind"`
	PaymentID string        `json:"paymentId,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("http: failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("http: failed to write response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required", "notblank":
			details[fe.Field()] = "is required"
		case "email":
			details[fe.Field()] = "must be a valid email"
		case "min", "gte":
			details[fe.Field()] = "must be at least " + fe.Param()
		case "max", "lte":
			details[fe.Field()] = "must be at most " + fe.Param()
		default:
			details[fe.Field()] = "is invalid"
		}
	}
	return details
}

// decodeAndValidate writes the error response itself and reports whether
// the handler may continue.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("http: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(verrs),
		})
		return false
	}
	log.Error().Err(err).Msg("http: unexpected validation error")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
	return false
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Warn().Str(name, raw).Msg("http: invalid id parameter")
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return id, true
}

func mapErrorToStatusCode(err error) int {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage prefers the backend's own wording.
func clientMessage(err error, fallback string) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		return api.SessionExpiredMessage
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return fallback
	}
}

func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
	} else {
		log.Warn().Err(err).Msg(fallback)
	}
	respondWithError(w, code, clientMessage(err, fallback))
}

var checkoutStatus = map[checkout.Kind]int{
	checkout.KindValidation:     http.StatusBadRequest,
	checkout.KindCancelled:      http.StatusConflict,
	checkout.KindPaymentFailed:  http.StatusPaymentRequired,
	checkout.KindReconciliation: http.StatusBadGateway,
}

func respondWithCheckoutError(w http.ResponseWriter, err error) {
	var cerr *checkout.Error
	if !errors.As(err, &cerr) {
		log.Error().Err(err).Msg("http: checkout failed")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Checkout failed"))
		return
	}
	code, ok := checkoutStatus[cerr.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	if cerr.Kind != checkout.KindReconciliation && errors.Is(err, api.ErrSessionExpired) {
		code = http.StatusUnauthorized
	}
	respondWithJSON(w, code, CheckoutErrorResponse{
		Error:     cerr.Title,
		Message:   cerr.Message,
		Kind:      cerr.Kind,
		PaymentID: cerr.PaymentID,
	})
}
