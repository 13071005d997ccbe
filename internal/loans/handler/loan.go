package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"libris/internal/loans/service"
	"libris/internal/loans/validator"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/model"
)

type LoanHandler struct {
	service   service.LoanService
	validator *validator.LoanValidator
	log       *logger.Logger
}

func NewLoanHandler(service service.LoanService, validator *validator.LoanValidator, log *logger.Logger) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

// Create handles POST /loans: 201 with the stored loan, 400 when the
// book is already loaned or the isbn resolves to no book.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write response", "handler", "Create", "error", writeErr)
		}
		return
	}

	loan, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, loan); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

// Return handles PATCH /loans/:id: sets the returned flag.
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var ret model.LoanReturn
	if err := json.NewDecoder(r.Body).Decode(&ret); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write response", "handler", "Return", "error", writeErr)
		}
		return
	}

	if err := h.validator.ValidateReturn(&ret); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "returned is required"); writeErr != nil {
			h.log.Error("failed to write response", "handler", "Return", "error", writeErr)
		}
		return
	}

	loan, err := h.service.Return(r.Context(), ps.ByName("id"), *ret.Returned)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Return", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, loan); err != nil {
		h.log.Error("failed to write success response", "handler", "Return", "error", err)
	}
}

// Find handles GET /loans with isbn/customer filters and pagination.
// Each returned loan carries its book record when the book still exists.
func (h *LoanHandler) Find(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Find", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	isbn := strings.TrimSpace(query.Get("isbn"))
	customer := strings.TrimSpace(query.Get("customer"))

	loans, totalCount, err := h.service.Find(r.Context(), isbn, customer, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Find", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, loans, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Find", "error", err)
	}
}

// FindByBook handles GET /books/:id/loans: the loan history of one book.
func (h *LoanHandler) FindByBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "FindByBook", "error", writeErr)
		}
		return
	}

	loans, totalCount, err := h.service.GetLoansByBook(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "FindByBook", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, loans, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "FindByBook", "error", err)
	}
}

func (h *LoanHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/loans", h.Create)
	router.GET("/loans", h.Find)
	router.PATCH("/loans/:id", h.Return)
	router.GET("/books/:id/loans", h.FindByBook)
}
