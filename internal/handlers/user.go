package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"ecosense/internal/middleware"
	"ecosense/internal/models"
)

// userRepository is the slice of the user repo this handler needs.
type userRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type UserHandler struct {
	users userRepository
}

func NewUserHandler(users userRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the profile of the session user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("User not found"))
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
