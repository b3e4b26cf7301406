package server

import (
	"fixmystuff/internal/models"
	"fixmystuff/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get my profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} models.ErrorResponse
// @Router /api/users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update my profile
// @Description Change username (subject to cooldown) or avatar URL
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{username=string,avatar_url=string} true "Profile changes"
// @Success 200 {object} service.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username  *string `json:"username"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// CheckUsername handles GET /api/users/check-username?username=
// @Summary Check username availability
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param username query string true "Candidate username"
// @Success 200 {object} object{available=bool}
// @Failure 400 {object} models.ErrorResponse
// @Router /api/users/check-username [get]
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	available, err := s.userService.CheckUsername(c.UserContext(), currentUserID(c), c.Query("username"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"available": available})
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Upload avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} service.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /api/users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := currentUserID(c)
	content, filename, contentType, err := formFileBytes(c, "avatar")
	if err != nil {
		return respondServiceError(c, err)
	}

	img, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      userID,
		Kind:        models.ImageKindAvatar,
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	profile, err := s.userService.SetAvatar(c.UserContext(), userID, s.imageService.PublicURL(img.Hash))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// UpdatePreferences handles PUT /api/users/me/preferences
// @Summary Update appearance preference
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{dark_mode=bool} true "Preferences"
// @Success 200 {object} service.Preferences
// @Failure 400 {object} models.ErrorResponse
// @Router /api/users/me/preferences [put]
func (s *Server) UpdatePreferences(c *fiber.Ctx) error {
	var req struct {
		DarkMode *bool `json:"dark_mode"`
	}
	if err := c.BodyParser(&req); err != nil || req.DarkMode == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("dark_mode is required"))
	}

	prefs, err := s.userService.UpdatePreferences(c.UserContext(), currentUserID(c), *req.DarkMode)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(prefs)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /api/users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.userService.GetPublic(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}
