package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

func periodParam(r *http.Request) (model.Period, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: year must be a number", ErrBadRequest)
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: month must be a number", ErrBadRequest)
	}
	return model.NewPeriod(month, year)
}

func levelParam(r *http.Request) (level.Level, error) {
	return level.Parse(chi.URLParam(r, "level"))
}

// unitParam decodes the unit segment. chi matches on RawPath when the path
// carries escapes such as %2F, leaving the value encoded.
func unitParam(r *http.Request) (string, error) {
	unit := chi.URLParam(r, "unit")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(unit)
		if err != nil {
			return "", fmt.Errorf("%w: malformed unit %q", ErrBadRequest, unit)
		}
		unit = decoded
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "", fmt.Errorf("%w: unit is required", ErrBadRequest)
	}
	return unit, nil
}
