package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/quote"
)

func sendQuoteHandler(composer *quote.Composer, sender Sender, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req model.QuoteRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				return err
			}
			return quote.NewError(quote.InvalidBody, quote.MsgInvalidBody)
		}

		if qe := quote.Validate(req); qe != nil {
			return qe
		}

		email, err := composer.Compose(req)
		if err != nil {
			logger.Error("compose email failed",
				zap.String("request_id", requestID(c)),
				zap.String("error", err.Error()))
			return quote.NewError(quote.UnexpectedError, quote.MsgUnexpected)
		}

		id, err := sender.Send(c.Request().Context(), email)
		if err != nil {
			logger.Error("send email failed",
				zap.String("request_id", requestID(c)),
				zap.String("error", err.Error()))
			return quote.NewError(quote.TransportFailure, quote.MsgTransportFailure)
		}

		metrics.QuoteRequestsTotal.WithLabelValues("sent").Inc()
		logger.Info("quote request sent",
			zap.String("request_id", requestID(c)),
			zap.String("id", id))

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"id":      id,
		})
	}
}
