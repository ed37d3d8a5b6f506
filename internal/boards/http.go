package boards

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

const maxBoardBodyBytes = 64 * 1024

// NewHandler exposes the listing and the catalog mutations:
//
//	GET    /boards          ?page&limit&search&ownerId&archived
//	POST   /boards
//	PUT    /boards/{id}
//	DELETE /boards/{id}
func NewHandler(service *Service, catalog *Catalog) http.Handler {
	h := &httpHandler{service: service, catalog: catalog}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boards", h.list)
	mux.HandleFunc("POST /boards", h.create)
	mux.HandleFunc("PUT /boards/{id}", h.update)
	mux.HandleFunc("DELETE /boards/{id}", h.delete)
	return mux
}

type httpHandler struct {
	service *Service
	catalog *Catalog
}

func (h *httpHandler) list(w http.ResponseWriter, r *http.Request) {
	query, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.service.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("X-Cache", page.Source)
	writeJSON(w, http.StatusOK, page)
}

func (h *httpHandler) create(w http.ResponseWriter, r *http.Request) {
	board, ok := decodeBoard(w, r)
	if !ok {
		return
	}
	if err := h.catalog.Create(board); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (h *httpHandler) update(w http.ResponseWriter, r *http.Request) {
	board, ok := decodeBoard(w, r)
	if !ok {
		return
	}
	board.ID = r.PathValue("id")
	if err := h.catalog.Update(board); err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *httpHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.PathValue("id")); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseQuery(r *http.Request) (Query, error) {
	values := r.URL.Query()
	var query Query
	var err error
	if raw := values.Get("page"); raw != "" {
		if query.Page, err = strconv.Atoi(raw); err != nil {
			return Query{}, errors.New("page must be an integer")
		}
	}
	if raw := values.Get("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil {
			return Query{}, errors.New("limit must be an integer")
		}
	}
	query.Search = values.Get("search")
	query.OwnerID = values.Get("ownerId")
	if raw := values.Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, errors.New("archived must be a boolean")
		}
		query.Archived = &archived
	}
	return query, nil
}

func decodeBoard(w http.ResponseWriter, r *http.Request) (Board, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBoardBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return Board{}, false
	}
	if len(body) > maxBoardBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return Board{}, false
	}
	var board Board
	if err := json.Unmarshal(body, &board); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return Board{}, false
	}
	return board, true
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
