package server

import (
	"errors"
	"net/http"
	"strings"

	"market-pipeline/src/helpers"
)

// -----------------------------------------------------------------------------

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation *helpers.ValidationError
		gateway    *helpers.GatewayError
		loader     *helpers.LoaderError
	)

	switch {
	case helpers.IsInvalidPeriod(err):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusNotFound
	case errors.As(err, &gateway), errors.As(err, &loader):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

// normalizeSymbol accepts "btc/usdt" and "BTC-USDT" as "BTC/USDT".
func normalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.ReplaceAll(s, "-", "/")
}
