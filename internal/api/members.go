package api

import (
	"net/http"
	"strings"

	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// bcrypt ignores everything past 72 bytes.
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

type createMemberRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (req createMemberRequest) validate() string {
	switch {
	case !strings.Contains(req.Email, "@") || strings.TrimSpace(req.Name) == "":
		return "email and name are required"
	case len(req.Password) < minPasswordLen || len(req.Password) > maxPasswordLen:
		return "password must be between 8 and 72 bytes"
	}
	return ""
}

// createMember serves both POST /api/members and POST /api/register.
func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	member, err := store.CreateMember(r.Context(), s.db, store.NewMember{
		Email:    normalizeEmail(req.Email),
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string         `json:"message"`
	Member  *models.Member `json:"member"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	member, err := store.Authenticate(r.Context(), s.db, normalizeEmail(req.Email), req.Password)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Message: "login succeeded", Member: member})
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	member, err := store.GetMember(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
