package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CORS allows the configured frontend origins with credentials. Any method is
// allowed and requested headers are echoed back.
func CORS(origins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowCredentials: true,
	})
}

// DecompressRequest inflates request bodies sent with Content-Encoding: gzip.
// A body that is not gzip, or breaks off mid stream, fails with 400
// "invalid gzip body".
func DecompressRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || !isGzipEncoded(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}
			body, err := newGzipBody(req.Body)
			if err != nil {
				return err
			}
			req.Body = body
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func isGzipEncoded(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

func invalidGzip(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, detailInvalidGzip).SetInternal(err)
}

// gzipBody reports corrupt streams as HTTP errors so decodeBody can pass
// them through.
type gzipBody struct {
	zr  *gzip.Reader
	src io.ReadCloser
}

func newGzipBody(src io.ReadCloser) (*gzipBody, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		_ = src.Close()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, invalidGzip(err)
	}
	return &gzipBody{zr: zr, src: src}, nil
}

func (b *gzipBody) Read(p []byte) (int, error) {
	n, err := b.zr.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return n, he
	}
	return n, invalidGzip(err)
}

func (b *gzipBody) Close() error {
	return errors.Join(b.zr.Close(), b.src.Close())
}
