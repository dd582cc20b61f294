package api

import (
	"net/http"

	"github.com/safar/storefront/internal/store"
)

type createReviewRequest struct {
	MemberID  int64  `json:"member_id"`
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	reviews, err := store.ListReviews(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

// createReview only accepts reviews from members who bought the product,
// one per purchased line.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MemberID <= 0 || req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "member_id and product_id are required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	review, err := store.CreateReview(r.Context(), s.db, store.NewReview{
		MemberID:  req.MemberID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}
