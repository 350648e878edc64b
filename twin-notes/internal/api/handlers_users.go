package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/store"
)

type registerRequest struct {
	Name     string `validate:"min=4,max=30"`
	Email    string `validate:"required,email"`
	Password string `validate:"min=6,max=30"`
}

type profileRequest struct {
	Name    string `validate:"min=4,max=30"`
	Phone   string `validate:"omitempty,numeric,min=8,max=20"`
	Company string `validate:"omitempty,min=4,max=30"`
}

// loginData is the data member of a successful login.
type loginData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Register handles POST /notes/api/users/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req := registerRequest{
		Name:     strings.TrimSpace(fields["name"]),
		Email:    strings.TrimSpace(fields["email"]),
		Password: fields["password"],
	}
	if msg := h.validationMessage(req); msg != "" {
		twincore.Error(w, http.StatusBadRequest, msg)
		return
	}
	if _, exists := h.store.UserByEmail(req.Email); exists {
		twincore.Error(w, http.StatusConflict, "An account already exists with the same email address")
		return
	}

	user := store.User{
		ID:           h.store.Users.NextID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: store.HashPassword(req.Password),
		CreatedAt:    h.store.Clock.Now(),
	}
	h.store.Users.Set(user.ID, user)
	h.logger.Debug("registered user", zap.String("user_id", user.ID))

	twincore.Success(w, http.StatusCreated, "User account created successfully", user.Profile())
}

// Login handles POST /notes/api/users/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(fields["email"])
	if err := h.validate.Var(email, "required,email"); err != nil {
		twincore.Error(w, http.StatusBadRequest, fieldMessages["Email"])
		return
	}
	user, ok := h.store.UserByEmail(email)
	if !ok || user.PasswordHash != store.HashPassword(fields["password"]) {
		twincore.Error(w, http.StatusUnauthorized, "Incorrect email address or password")
		return
	}

	token, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	twincore.Success(w, http.StatusOK, "Login successful", loginData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
}

// GetProfile handles GET /notes/api/users/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	twincore.Success(w, http.StatusOK, "Profile successful", caller(r).user.Profile())
}

// UpdateProfile handles PATCH /notes/api/users/profile. Omitted phone and
// company keep their values.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	p := caller(r)
	req := profileRequest{
		Name:    strings.TrimSpace(fields["name"]),
		Phone:   strings.TrimSpace(fields["phone"]),
		Company: strings.TrimSpace(fields["company"]),
	}
	if msg := h.validationMessage(req); msg != "" {
		twincore.Error(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.store.Users.Update(p.user.ID, func(u store.User) (store.User, error) {
		u.Name = req.Name
		if _, ok := fields["phone"]; ok {
			u.Phone = req.Phone
		}
		if _, ok := fields["company"]; ok {
			u.Company = req.Company
		}
		return u, nil
	})
	if err != nil {
		twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	twincore.Success(w, http.StatusOK, "Profile updated successful", updated.Profile())
}

// Logout handles DELETE /notes/api/users/logout by revoking the token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	h.store.Revoked.Set(p.tokenID, store.Revocation{UserID: p.user.ID, RevokedAt: h.store.Clock.Now()})
	twincore.Success(w, http.StatusOK, "User has been successfully logged out", nil)
}

// DeleteAccount handles DELETE /notes/api/users/delete-account. The user's
// notes go with it.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if !h.store.DeleteUser(p.user.ID) {
		twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	h.store.Revoked.Set(p.tokenID, store.Revocation{UserID: p.user.ID, RevokedAt: h.store.Clock.Now()})
	h.logger.Debug("deleted account", zap.String("user_id", p.user.ID))
	twincore.Success(w, http.StatusOK, "Account successfully deleted", nil)
}
