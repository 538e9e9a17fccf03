package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
	"github.com/google/uuid"
)

type AuthHandler struct {
	dbclient  core.DbClient
	jwtSecret string
}

func NewAuthHandler(dbclient core.DbClient, jwtSecret string) *AuthHandler {
	return &AuthHandler{dbclient: dbclient, jwtSecret: jwtSecret}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", 400)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", 400)
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := h.dbclient.CreateUser(context.Background(), user); err != nil {
		http.Error(w, "user exists", 409)
		return
	}

	token := generateJWT(user.ID, h.jwtSecret)
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", 400)
		return
	}

	user, err := h.dbclient.GetUserByEmail(context.Background(), req.Email)
	if err != nil || user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", 401)
		return
	}

	token := generateJWT(user.ID, h.jwtSecret)
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// generateJWT creates a signed token with user ID claim
func generateJWT(userID, secret string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, _ := tok.SignedString([]byte(secret))
	return token
}
