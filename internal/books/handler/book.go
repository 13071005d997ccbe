package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"libris/internal/books/service"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/model"
)

type BookHandler struct {
	service service.BookService
	log     *logger.Logger
}

func NewBookHandler(service service.BookService, log *logger.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		log:     log,
	}
}

// Create handles POST /books: 201 with the stored record, 400 with the
// validation or duplicate-isbn error list.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var book model.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &book); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, book); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	book, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

// Find handles GET /books with title/author/isbn filters and pagination.
func (h *BookHandler) Find(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Find", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	filter := &model.BookFilter{
		Title:  strings.TrimSpace(query.Get("title")),
		Author: strings.TrimSpace(query.Get("author")),
		Isbn:   strings.TrimSpace(query.Get("isbn")),
	}

	books, totalCount, err := h.service.Find(r.Context(), filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Find", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, books, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Find", "error", err)
	}
}

// Update handles PUT /books/:id: overwrites title and author, never isbn.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteBadRequest(w, "Invalid request body"); writeErr != nil {
			h.log.Error("failed to write response", "handler", "Update", "error", writeErr)
		}
		return
	}

	book, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "error", writeErr)
		}
		return
	}

	book.Title = update.Title
	book.Author = update.Author

	if err := h.service.Update(r.Context(), book); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "error", err)
	}
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	book, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "error", writeErr)
		}
		return
	}

	if err := h.service.Delete(r.Context(), book); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/books", h.Create)
	router.GET("/books", h.Find)
	router.GET("/books/:id", h.GetByID)
	router.PUT("/books/:id", h.Update)
	router.DELETE("/books/:id", h.Delete)
}
