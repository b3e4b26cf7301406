package server

import (
	"encoding/json"
	"errors"
	"strings"

	"fixmystuff/internal/middleware"
	"fixmystuff/internal/solution"

	"github.com/gofiber/fiber/v2"
)

const functionsPrefix = "/functions/v1"

var errMissingDescription = errors.New("description is required")

const functionAllowHeaders = "authorization, x-client-info, apikey, content-type"

func isFunctionPath(path string) bool {
	return strings.HasPrefix(path, functionsPrefix+"/")
}

func setFunctionCORS(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, functionAllowHeaders)
}

// GenerateSolutionPreflight handles OPTIONS /functions/v1/generate-solution
// @Summary generate-solution preflight
// @Tags functions
// @Success 200
// @Router /functions/v1/generate-solution [options]
func (s *Server) GenerateSolutionPreflight(c *fiber.Ctx) error {
	setFunctionCORS(c)
	return c.SendStatus(fiber.StatusOK)
}

// GenerateSolution handles POST /functions/v1/generate-solution. Any failure,
// including a malformed body, is a 500 with status "error".
// @Summary Generate a repair solution
// @Tags functions
// @Accept json
// @Produce json
// @Param request body object{description=string,imageUrl=string} true "Problem description"
// @Success 200 {object} object{solution=string,status=string}
// @Failure 500 {object} object{error=string,status=string}
// @Router /functions/v1/generate-solution [post]
func (s *Server) GenerateSolution(c *fiber.Ctx) error {
	setFunctionCORS(c)

	var body struct {
		Description *string `json:"description"`
		ImageURL    string  `json:"imageUrl"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return functionError(c, err)
	}
	// An empty description is allowed; an absent or null one is not.
	if body.Description == nil {
		return functionError(c, errMissingDescription)
	}

	req := solution.Request{Description: *body.Description, ImageURL: body.ImageURL}
	text, provider, err := s.solutions.Generate(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return functionError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "solution generated", "provider", provider)
	return c.JSON(fiber.Map{
		"solution": text,
		"status":   "success",
	})
}

func functionError(c *fiber.Ctx, err error) error {
	middleware.Logger.ErrorContext(c.UserContext(), "generate-solution failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":  err.Error(),
		"status": "error",
	})
}
