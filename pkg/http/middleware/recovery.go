package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "SalesPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into a generic 500 and logs the stack.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					l.Error("panic recovered",
						applogger.Error(perr),
						applogger.String("route", routeOf(c)),
						applogger.String("stack", string(debug.Stack())),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]string{
						"detail": "Internal server error",
						"code":   "ERR_INTERNAL",
					})
				}
			}()
			return next(c)
		}
	}
}
