// Package handler contains the Echo handlers of the /api surface.  Handlers
// parse and validate input, call one service and write the envelope; all
// domain rules live in the services.
package handler

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/middleware"
)

// DefaultTimeout bounds the store calls of one request when no timeout is
// configured.
const DefaultTimeout = 5 * time.Second

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// Validator adapts validator/v10 to echo.Validator.  Failures come back as
// InvalidInput errors naming the JSON field.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator reporting JSON field names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		if fe.Param() != "" {
			return apperr.Invalid("%s failed the %s=%s rule", fe.Field(), fe.Tag(), fe.Param())
		}
		return apperr.Invalid("%s failed the %s rule", fe.Field(), fe.Tag())
	}
	return apperr.Invalid("invalid request")
}

// bindValid binds the request body into dst and validates it.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Invalid("invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// requestCtx derives the context for the store calls of one request.
func requestCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// currentUser returns the authenticated caller or an Unauthorized error.
// Routes needing it run behind JWTAuth, so a miss means a wiring bug.
func currentUser(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.New(apperr.Unauthenticated, "User is not authenticated")
	}
	return id, nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name, label string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("%s must be a positive integer", label)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", name)
	}
	return n, nil
}

// queryDate parses a required date query parameter.
func queryDate(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, apperr.Invalid("%s is required", name)
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		return d, nil
	}
	return time.Time{}, apperr.Invalid("%s must be a date in YYYY-MM-DD format", name)
}

// queryID parses an optional id query parameter; 0 means absent.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("%s must be a positive integer", name)
	}
	return n, nil
}

// pageParams reads pageNumber/pageSize, accepting page/size as aliases.
func pageParams(c echo.Context) (int, int, error) {
	pageKey, sizeKey := "pageNumber", "pageSize"
	if c.QueryParam(pageKey) == "" && c.QueryParam("page") != "" {
		pageKey = "page"
	}
	if c.QueryParam(sizeKey) == "" && c.QueryParam("size") != "" {
		sizeKey = "size"
	}
	page, err := queryInt(c, pageKey, defaultPage)
	if err != nil {
		return 0, 0, err
	}
	size, err := queryInt(c, sizeKey, defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}
