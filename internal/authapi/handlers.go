package authapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"parapet/pkg/problems"
	"parapet/pkg/users"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Routes mounts the auth endpoints on r.
func (a *App) Routes(r chi.Router) {
	r.Post("/auth/login", a.login)
	r.Post("/auth/register", a.register)
	r.Get("/auth/me", a.me)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		problems.Write(w, problems.BadRequest)
		return
	}

	ctx := r.Context()
	if a.throttle.TooMany(ctx, req.Username) {
		a.log.Warnw("login throttled", "username", req.Username)
		problems.Write(w, problems.TooManyAttempts)
		return
	}

	// One generic failure for unknown user and wrong password alike.
	u, err := a.store.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			a.log.Errorw("credential store lookup failed", "username", req.Username, "err", err)
			problems.Write(w, problems.Internal)
			return
		}
		a.throttle.Fail(ctx, req.Username)
		problems.Write(w, problems.InvalidCredentials)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		a.throttle.Fail(ctx, req.Username)
		problems.Write(w, problems.InvalidCredentials)
		return
	}

	tok, err := a.issuer.Issue(u)
	if err != nil {
		a.log.Errorw("token issue failed", "username", u.Username, "err", err)
		problems.Write(w, problems.Internal)
		return
	}
	a.throttle.Reset(ctx, req.Username)
	a.log.Infow("login", "username", u.Username, "userId", u.ID)
	writeJSON(w, map[string]any{"token": tok, "username": u.Username, "userId": u.ID}, http.StatusOK)
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		problems.Write(w, problems.BadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		problems.Write(w, problems.Internal)
		return
	}
	u, err := a.store.Create(r.Context(), req.Username, string(hash), "")
	if err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			problems.Write(w, problems.Problem{Status: http.StatusBadRequest, Code: "username_taken", Message: "username already exists"})
			return
		}
		a.log.Errorw("user create failed", "username", req.Username, "err", err)
		problems.Write(w, problems.Internal)
		return
	}
	a.log.Infow("user registered", "username", u.Username, "userId", u.ID)
	writeJSON(w, map[string]any{"message": "user registered successfully", "userId": u.ID}, http.StatusOK)
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		problems.Write(w, problems.Unauthorized)
		return
	}
	pr, err := a.validator.Validate(raw)
	if err != nil {
		problems.Write(w, problems.TokenInvalid)
		return
	}
	u, err := a.store.FindByID(r.Context(), pr.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			problems.Write(w, problems.NotFound)
			return
		}
		a.log.Errorw("credential store lookup failed", "userId", pr.UserID, "err", err)
		problems.Write(w, problems.Internal)
		return
	}
	writeJSON(w, map[string]any{"id": u.ID, "username": u.Username}, http.StatusOK)
}

func bearerToken(authz string) string {
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
