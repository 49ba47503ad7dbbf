package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct {
	registerService services.RegisterService
}

func NewRegisterHandler(registerService services.RegisterService) *RegisterHandler {
	return &RegisterHandler{registerService: registerService}
}

type RegistrationResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	if err := validateRegistration(&req); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.registerService.RegisterUser(c.Request.Context(), req)
	if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "registration_failed",
			"details": err.Error(),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "Account created",
		User:    UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func validateRegistration(req *services.RegistrationRequest) error {
	verr := apperrors.NewValidationError()

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 {
		verr.Add("username", "must be at least 3 characters long")
	}
	for _, r := range req.Username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			verr.Add("username", "can only contain letters, numbers, and underscores")
			break
		}
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range req.Password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	var missing []string
	if !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "number")
	}
	if len(missing) > 0 {
		verr.Add("password", "must contain at least one "+strings.Join(missing, ", "))
	}

	return verr.OrNil()
}
