package services

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"vehicle_vault/vault/access"
	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/search"
	"vehicle_vault/vault/storage"
	"vehicle_vault/vault/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type SearchService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	searcher *search.Searcher
}

func (s *SearchService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.Search)
		r.Get("/detail/{entry_id}", s.Detail)
	})

	return r
}

func (s *SearchService) Search(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	params := r.URL.Query()
	page, _ := strconv.Atoi(params.Get("page"))
	pageSize, _ := strconv.Atoi(params.Get("page_size"))

	result, err := s.searcher.Search(r.Context(), user, search.Request{
		Query:     params.Get("query"),
		FieldHint: params.Get("field"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error searching records: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteJsonResponse(w, result)
}

func (s *SearchService) Detail(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	entryId := chi.URLParam(r, "entry_id")

	detail, err := s.searcher.Detail(r.Context(), user, entryId)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrAccessDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, schema.ErrNotFound), errors.Is(err, storage.ErrRowNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, storage.ErrBlobUnavailable):
			// Transient: the caller may retry. Never reported as not
			// found.
			w.Header().Set("Retry-After", "1")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, fmt.Sprintf("error fetching record detail: %v", err), http.StatusBadRequest)
		}
		return
	}

	utils.WriteJsonResponse(w, detail)
}
