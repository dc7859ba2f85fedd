package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/eliabeart/gallerybackend/models"
	"github.com/eliabeart/gallerybackend/repository"
)

type UserHandler struct {
	UserRepo repository.UserRepositoryInterface
}

func NewUserHandler(userRepo repository.UserRepositoryInterface) *UserHandler {
	return &UserHandler{UserRepo: userRepo}
}

// CreateUser registers a new account. The route sits behind AuthMiddleware,
// so only an existing user can mint another.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: username and password"})
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		IsActive: true,
		IsAdmin:  req.IsAdmin,
	}
	if err := user.SetPassword(req.Password); err != nil {
		log.Printf("Error hashing password for user %s: %v", req.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create user"})
		return
	}

	if err := h.UserRepo.Create(&user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Username already exists"})
		} else {
			log.Printf("Error creating user %s: %v", req.Username, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create user"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}
