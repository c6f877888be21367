package controller

import "github.com/gofiber/fiber/v2"

type ErrorResponse struct {
	Error string `json:"error"`
}

var InvalidRequestError = ErrorResponse{
	Error: "The request was invalid and not recognized",
}

var UnsupportedActionError = ErrorResponse{
	Error: "The requested action is not supported in this API",
}

func ErrInvalidRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(&InvalidRequestError)
}

func ErrUnsupportedAction(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(&UnsupportedActionError)
}

func ErrBadRequest(c *fiber.Ctx, errorText string) error {
	return c.Status(fiber.StatusBadRequest).JSON(&ErrorResponse{
		Error: errorText,
	})
}

func ErrInternalServerError(c *fiber.Ctx, errorText string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(&ErrorResponse{
		Error: errorText,
	})
}
