package serv

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/treeql/treeql/auth"
)

var validate = validator.New()

type logonRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// logonHandler checks the password against the account table and
// issues a session token.
func (s *Service) logonHandler(w http.ResponseWriter, r *http.Request) {
	var req logonRequest
	if !decodeValidated(w, r, &req) {
		return
	}

	account, err := s.run.QueryOne(r.Context(),
		"SELECT * FROM "+s.conf.Auth.AccountTable+" WHERE email=? OR phone=?",
		req.Username, req.Username)
	if err != nil {
		renderError(w, err)
		return
	}

	hash, _ := account["password"].(string)
	if account == nil || !auth.CheckPassword(hash, req.Password) {
		renderJSON(w, http.StatusUnauthorized, errEnvelope("invalid credentials"))
		return
	}

	sub, _ := account["id"].(int64)
	role, _ := account["role"].(string)
	token, err := s.auth.IssueToken(sub, role)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"token": token})
}

type accountRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"`
}

// accountHandler creates an account with a bcrypt-hashed password.
// Either an email or a phone number is required.
func (s *Service) accountHandler(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeValidated(w, r, &req) {
		return
	}
	if req.Email == "" && req.Phone == "" {
		renderJSON(w, http.StatusBadRequest, errEnvelope("email or phone required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		renderError(w, err)
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}

	result, failed := s.gw.Insert(r.Context(), map[string]any{
		s.conf.Auth.AccountTable: map[string]any{
			"email":    req.Email,
			"phone":    req.Phone,
			"password": hash,
			"role":     role,
		},
	})
	if failed {
		renderJSON(w, http.StatusBadRequest, result)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"id": result[s.conf.Auth.AccountTable]})
}

// apiKeyHandler issues a long-lived token for the authenticated
// account.
func (s *Service) apiKeyHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		renderJSON(w, http.StatusUnauthorized, errEnvelope("authorization required"))
		return
	}
	key, err := s.auth.IssueAPIKey(claims.Sub, claims.Role)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"api_key": key})
}

func decodeValidated(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		renderJSON(w, http.StatusBadRequest, errEnvelope("invalid json body"))
		return false
	}
	if err := validate.Struct(v); err != nil {
		renderJSON(w, http.StatusBadRequest, errEnvelope(err.Error()))
		return false
	}
	return true
}
