package api

import (
	"errors"

	"github.com/relaymsg/gateway/internal/constants"
	"github.com/relaymsg/gateway/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler maps service errors onto the API's error envelope. Anything
// without a known code is a 500 with the cause kept out of the response.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var svcErr service.Error
		if errors.As(err, &svcErr) {
			return c.Status(constants.GetHTTPStatus(svcErr.Code)).JSON(fiber.Map{
				"code":    svcErr.Code,
				"message": svcErr.Error(),
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"code":    constants.ErrCodeInternalError,
				"message": fiberErr.Message,
			})
		}

		if errors.Is(err, service.ErrMessageNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"code":    constants.ErrCodeMessageNotFound,
				"message": constants.GetErrorMessage(constants.ErrCodeMessageNotFound),
			})
		}

		logger.Error("Unhandled error", zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    constants.ErrCodeInternalError,
			"message": constants.GetErrorMessage(constants.ErrCodeInternalError),
		})
	}
}
