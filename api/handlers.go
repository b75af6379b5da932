package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/tasks", listTasks(store, auth, logger))
	e.POST("/api/tasks", createTask(store, auth, deduper, logger))
	e.PATCH("/api/tasks/:id", updateTask(store, auth))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth))
	e.PUT("/api/tasks/order", reorderTasks(store, auth, logger))
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "storage unreachable")
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, logger, "/api/tasks")
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasks(ctx, userID)
		metrics.ObserveStore(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = fail(c, http.StatusInternalServerError, codeStorage, "storage failure")
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var draft domain.Draft
		if err := decodeBody(c, &draft); err != nil {
			return fail(c, http.StatusBadRequest, codeValidation, "invalid body")
		}
		if err := draft.Normalize(); err != nil {
			return writeDomainError(c, err)
		}

		key := c.Request().Header.Get(headerIdempotencyKey)
		if key == "" {
			key = uuid.NewString()
		}
		if deduper != nil {
			fresh, derr := deduper.Add(ctx, userID, key)
			if derr != nil {
				logger.WithError(derr).Warn("idempotency check unavailable; continuing")
			} else if !fresh {
				return fail(c, http.StatusConflict, codeDuplicate, "duplicate create request")
			}
		}

		task, err := store.CreateTask(ctx, userID, draft)
		if err != nil {
			// Release the key so the client may retry the same submission.
			if deduper != nil {
				_ = deduper.Remove(ctx, userID, key)
			}
			c.Logger().Error(err)
			return fail(c, http.StatusInternalServerError, codeStorage, "storage failure")
		}
		c.Response().Header().Set(headerIdempotencyKey, key)
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		taskID, err := parseTaskID(c.Param("id"))
		if err != nil {
			return fail(c, http.StatusBadRequest, codeValidation, "invalid task id")
		}

		var patch domain.Patch
		if err := decodeBody(c, &patch); err != nil {
			return fail(c, http.StatusBadRequest, codeValidation, "invalid body")
		}
		if err := patch.Validate(); err != nil {
			return writeDomainError(c, err)
		}

		task, err := store.UpdateTask(ctx, userID, taskID, patch)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		taskID, err := parseTaskID(c.Param("id"))
		if err != nil {
			return fail(c, http.StatusBadRequest, codeValidation, "invalid task id")
		}

		if err := store.DeleteTask(ctx, userID, taskID); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, logger, "/api/tasks/order")
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var ids []int64
		if decodeErr := decodeBody(c, &ids); decodeErr != nil {
			metrics.SetErrorStage("decode_request")
			err = fail(c, http.StatusBadRequest, codeValidation, "invalid body")
			return err
		}
		if len(ids) == 0 {
			metrics.SetErrorStage("empty_order")
			err = fail(c, http.StatusBadRequest, codeValidation, "order must contain at least one task id")
			return err
		}

		storeStart := time.Now()
		tasks, storeErr := store.ReorderTasks(ctx, userID, ids)
		metrics.ObserveStore(time.Since(storeStart))
		if storeErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(storeErr)
			err = fail(c, http.StatusInternalServerError, codeStorage, "storage failure")
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func parseTaskID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorResponse{Code: code, Message: msg})
}

func writeDomainError(c echo.Context, err error) error {
	var verr domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoFields):
		return fail(c, http.StatusBadRequest, codeNoFields, err.Error())
	case errors.As(err, &verr):
		return fail(c, http.StatusBadRequest, codeValidation, verr.Error())
	}
	return writeStoreError(c, err)
}

func writeStoreError(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fail(c, http.StatusNotFound, codeNotFound, "task not found or unauthorized")
	}
	if errors.Is(err, domain.ErrNoFields) {
		return fail(c, http.StatusBadRequest, codeNoFields, err.Error())
	}
	c.Logger().Error(err)
	return fail(c, http.StatusInternalServerError, codeStorage, "storage failure")
}
