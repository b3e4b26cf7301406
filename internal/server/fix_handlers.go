package server

import (
	"fixmystuff/internal/models"
	"fixmystuff/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitFixResponse is returned after a fix request is stored.
type SubmitFixResponse struct {
	Fix     *models.FixRequest `json:"fix"`
	Message string             `json:"message"`
}

// FixListResponse is one page of the caller's fix requests.
type FixListResponse struct {
	Fixes  []models.FixRequest `json:"fixes"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// SubmitFix handles POST /api/fixes
// @Summary Submit a fix request
// @Description Upload a photo and description and receive a generated repair solution
// @Tags fixes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Photo of the item"
// @Param description formData string true "What is wrong"
// @Success 201 {object} SubmitFixResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/fixes [post]
func (s *Server) SubmitFix(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError(service.MsgSignInToSubmit))
	}

	content, filename, contentType, err := formFileBytes(c, "image")
	if err != nil {
		return respondServiceError(c, err)
	}

	fix, err := s.fixService.Submit(c.UserContext(), service.SubmitFixInput{
		UserID:      userID,
		Description: c.FormValue("description"),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SubmitFixResponse{
		Fix:     fix,
		Message: service.MsgSolutionReady,
	})
}

// ListFixes handles GET /api/fixes
// @Summary List my fix requests
// @Tags fixes
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} FixListResponse
// @Router /api/fixes [get]
func (s *Server) ListFixes(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultFixPageSize)
	fixes, total, err := s.fixService.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	if fixes == nil {
		fixes = []models.FixRequest{}
	}
	return c.JSON(FixListResponse{Fixes: fixes, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// GetFix handles GET /api/fixes/:id
// @Summary Get a fix request
// @Tags fixes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fix request ID"
// @Success 200 {object} models.FixRequest
// @Failure 404 {object} models.ErrorResponse
// @Router /api/fixes/{id} [get]
func (s *Server) GetFix(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	fix, err := s.fixService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fix)
}

// DeleteFix handles DELETE /api/fixes/:id
// @Summary Delete a fix request
// @Tags fixes
// @Security BearerAuth
// @Param id path int true "Fix request ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/fixes/{id} [delete]
func (s *Server) DeleteFix(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.fixService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RecentFixes handles GET /api/fixes/recent
// @Summary Recent community fixes
// @Tags fixes
// @Produce json
// @Param limit query int false "Number of fixes" default(4)
// @Success 200 {array} models.CommunityFix
// @Router /api/fixes/recent [get]
func (s *Server) RecentFixes(c *fiber.Ctx) error {
	fixes, err := s.fixService.Recent(c.UserContext(), c.QueryInt("limit", service.DefaultRecentFixes))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fixes)
}
