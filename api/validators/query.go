package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryDate parses an optional RFC 3339 date (2006-01-02) query
// parameter. A missing value returns the zero time.
func ParseQueryDate(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a date (YYYY-MM-DD)").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
