package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// parseID parses a positive member, card, or deck ID.
func parseID(name, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// pathID reads a positive ID from the chi path parameter name.
func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, chi.URLParam(r, name))
}

// queryID reads a positive ID from the query parameter name.
func queryID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.URL.Query().Get(name))
}

// queryDate reads an optional YYYY-MM-DD query parameter. ok is false when
// the parameter is absent.
func queryDate(r *http.Request, name string) (date time.Time, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	date, err = time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s must be formatted as YYYY-MM-DD", name)
	}
	return date, true, nil
}
