package response

import (
	stderrors "errors"

	domain "coinforge/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"data": data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": message},
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, "VALIDATION_ERROR", message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, "UNAUTHORIZED", message)
}

func InternalError(c *fiber.Ctx) error {
	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

// DomainError maps a service failure to its HTTP shape. Business-rule
// failures carry their structured code; anything else is reported as a
// generic internal error.
func DomainError(c *fiber.Ctx, err error) error {
	var derr *domain.DomainError
	if stderrors.As(err, &derr) {
		return Error(c, derr.HTTPStatus(), derr.Code, derr.Message)
	}
	return InternalError(c)
}
