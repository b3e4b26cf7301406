package server

import (
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SignupResponse is a new session plus the UI's confirmation text.
type SignupResponse struct {
	*service.Session
	Message string `json:"message"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register an account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,username=string} true "Signup request"
// @Success 201 {object} SignupResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	sess, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SignupResponse{
		Session: sess,
		Message: "Account created successfully!",
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate and return a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} service.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sess, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(sess)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token"
// @Success 200 {object} service.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh_token is required"))
	}

	sess, err := s.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(sess)
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := middleware.ClaimsFrom(c)
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// Session handles GET /api/auth/session
// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/session [get]
func (s *Server) Session(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Session is no longer valid"))
		}
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}
