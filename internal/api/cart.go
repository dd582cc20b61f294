package api

import (
	"net/http"

	"github.com/safar/storefront/internal/store"
)

type cartRequest struct {
	MemberID  int64 `json:"member_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (s *Server) listCart(w http.ResponseWriter, r *http.Request) {
	memberID, ok := queryID(r, "member_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	lines, err := store.ListCart(r.Context(), s.db, memberID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MemberID <= 0 || req.ProductID <= 0 || req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "member_id, product_id and a positive quantity are required")
		return
	}

	entry, err := store.AddToCart(r.Context(), s.db, req.MemberID, req.ProductID, req.Quantity)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) updateCartEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cart entry id")
		return
	}

	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MemberID <= 0 || req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "member_id and a positive quantity are required")
		return
	}

	if err := store.UpdateCartQuantity(r.Context(), s.db, req.MemberID, id, req.Quantity); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteCartEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cart entry id")
		return
	}
	memberID, ok := queryID(r, "member_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	if err := store.DeleteCartEntry(r.Context(), s.db, memberID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
