package handlers

import (
	"errors"
	"fmt"
	"log"

	"vestra/internal/middleware"
	"vestra/internal/models"
	"vestra/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// User-facing messages, gathered here so a localization layer has one
// place to intercept them. The original product shipped these in
// Portuguese and English; there is one workflow either way.
const (
	msgRegistered       = "Confirmation email sent! Check your inbox and enter the 6-digit code to complete registration."
	msgConfirmed        = "Email confirmed successfully! Your account has been created."
	msgLoggedIn         = "Login successful"
	msgLoggedOut        = "Logged out"
	msgInvalidBody      = "Invalid request body"
	msgValidationFailed = "Validation failed"
	msgEmailTaken       = "This email is already registered"
	msgInvalidCode      = "Invalid confirmation code"
	msgCodeExpired      = "The confirmation code has expired. Register again to receive a new code."
	msgPendingNotFound  = "Registration data not found. Start the registration process again."
	msgEmailDelivery    = "Failed to send confirmation email. Please try again."
	msgBadCredentials   = "Incorrect email or password"
	msgAccountDisabled  = "Account disabled"
	msgStoreUnavailable = "Could not reach the database. Please try again shortly."
	msgUnexpected       = "An unexpected error occurred"
)

// AuthHandler handles HTTP requests for the registration and login flow.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the public auth routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/confirm", h.HandleConfirm)
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterProtectedRoutes registers the routes that require a valid
// session token.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Get("/me", h.HandleMe)
	authRoutes.Post("/logout", h.HandleLogout)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name                 string `json:"name" validate:"omitempty,max=100"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// HandleRegister starts a registration and emails the confirmation code.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	if err := h.authService.Register(req.Name, req.Email, req.Password); err != nil {
		log.Printf("Error registering %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": msgEmailTaken})
		case errors.Is(err, services.ErrEmailDelivery):
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msgEmailDelivery})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msgUnexpected})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": msgRegistered})
}

// ConfirmRequest represents the request body for email confirmation.
type ConfirmRequest struct {
	Email            string `json:"email" validate:"required,email"`
	ConfirmationCode string `json:"confirmation_code" validate:"required,len=6,numeric"`
}

// HandleConfirm verifies the emailed code and creates the account.
func (h *AuthHandler) HandleConfirm(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing confirm request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	user, err := h.authService.Confirm(req.Email, req.ConfirmationCode)
	if err != nil {
		log.Printf("Error confirming %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrInvalidCode):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msgInvalidCode})
		case errors.Is(err, services.ErrCodeExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"message": msgCodeExpired})
		case errors.Is(err, services.ErrPendingNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msgPendingNotFound})
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": msgEmailTaken})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msgUnexpected})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": msgConfirmed,
		"user":    user.Public(),
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	user, token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": msgBadCredentials})
		case errors.Is(err, services.ErrAccountDisabled):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": msgAccountDisabled})
		case errors.Is(err, services.ErrStoreUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": msgStoreUnavailable})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msgUnexpected})
		}
	}

	return c.JSON(fiber.Map{
		"message":       msgLoggedIn,
		"user":          user.Public(),
		"session_token": token,
	})
}

// HandleMe returns the user behind the presented session token.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.LocalsUser).(*models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": msgUnexpected})
	}
	return c.JSON(fiber.Map{"user": user.Public()})
}

// HandleLogout discards the presented session.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	token, ok := c.Locals(middleware.LocalsToken).(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": msgUnexpected})
	}
	if err := h.authService.Logout(token); err != nil {
		log.Printf("Error during logout: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msgUnexpected})
	}
	return c.JSON(fiber.Map{"message": msgLoggedOut})
}

// validationErrorResponse turns validator errors into a field->message map.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msgValidationFailed})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": msgValidationFailed,
		"errors":  errorMessages,
	})
}
