package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Errors     []apperr.FieldError `json:"errors,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type Pagination struct {
	Current    int  `json:"current"`
	Total      int  `json:"total"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
	TotalItems int  `json:"totalItems"`
}

func newPagination(page, limit, totalItems int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(totalItems) / float64(limit)))
	}
	return &Pagination{
		Current:    page,
		Total:      pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
		TotalItems: totalItems,
	}
}

// base carries what every handler needs to decode requests and write responses.
type base struct {
	validate   *validator.Validate
	production bool
}

func newBase(production bool) base {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return base{validate: v, production: production}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, Response{Success: true, Message: message, Data: data})
}

func respondPage(w http.ResponseWriter, data any, page, limit, total int) {
	respondWithJSON(w, http.StatusOK, Response{
		Success:    true,
		Data:       data,
		Pagination: newPagination(page, limit, total),
	})
}

func mapErrorToStatusCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError writes err as an envelope. Upstream and internal
// failures get a generic message; their detail is only exposed outside
// production.
func (b base) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := mapErrorToStatusCode(err)
	resp := Response{Success: false}

	e, known := apperr.As(err)
	switch {
	case known && code < http.StatusInternalServerError:
		resp.Message = e.Message
		resp.Errors = e.Fields
		if e.Kind == apperr.RateLimited && e.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
		}
	case known && e.Kind == apperr.Upstream:
		resp.Message = e.Message
	default:
		resp.Message = "Internal server error"
	}

	if code >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		if !b.production {
			resp.Error = err.Error()
		}
	}

	respondWithJSON(w, code, resp)
}

func formatValidationErrors(errs validator.ValidationErrors) []apperr.FieldError {
	details := make([]apperr.FieldError, 0, len(errs))
	for _, fe := range errs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "email":
			msg = "must be a valid email address"
		case "min":
			msg = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			msg = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		case "gt", "gte", "lt", "lte":
			msg = fmt.Sprintf("must satisfy %s %s", fe.Tag(), fe.Param())
		default:
			msg = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		details = append(details, apperr.FieldError{Field: field, Message: msg})
	}
	return details
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func (b base) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		b.respondWithError(w, r, apperr.Invalid("Invalid request payload"))
		return false
	}

	if err := b.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			b.respondWithError(w, r, apperr.Invalid("Validation failed", formatValidationErrors(validationErrors)...))
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			b.respondWithError(w, r, err)
		}
		return false
	}
	return true
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		return uuid.Nil, apperr.Invalid("Invalid id parameter", apperr.FieldError{Field: name, Message: "must be a UUID"})
	}
	return id, nil
}

// pageParams reads page and limit query parameters, clamping them to sane values.
func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
