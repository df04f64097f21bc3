package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// sonicSerializer implements echo.JSONSerializer on top of sonic.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, detailInvalidBody).SetInternal(err)
	}
	return nil
}

// decodeBody reads a JSON request body into v. The body must hold exactly one
// JSON value; malformed JSON, trailing data and values of the wrong type are
// reported as 422. Errors raised while reading the body, such as the body
// limit or a corrupt gzip stream, pass through unchanged.
func decodeBody(c echo.Context, v interface{}) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, detailInvalidBody).SetInternal(err)
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detailInvalidBody).SetInternal(err)
	}
	return nil
}
