package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestGzipRequestMiddlewareDecompresses(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(`{"title":"t"}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", &buf)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	next := func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		seen = string(body)
		return c.NoContent(http.StatusOK)
	}

	if err := GzipRequestMiddleware()(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if seen != `{"title":"t"}` {
		t.Fatalf("expected decompressed body, got %q", seen)
	}
	if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
		t.Fatal("expected Content-Encoding header removed")
	}
}

func TestGzipRequestMiddlewarePassesPlainBodies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"title":"t"}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		if string(body) != `{"title":"t"}` {
			t.Fatalf("plain body altered: %q", body)
		}
		return c.NoContent(http.StatusOK)
	}

	if err := GzipRequestMiddleware()(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestGzipRequestMiddlewareRejectsBrokenPayload(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("not gzip at all"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	err := GzipRequestMiddleware()(next)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}
