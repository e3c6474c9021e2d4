package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"
)

var errBenchOffline = errors.New("bench offline")

func respond(status int, err error) APIResponse {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")
	ErrorResponse(c, status, "failed", err)

	var resp APIResponse
	So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
	return resp
}

func TestErrorResponse(t *testing.T) {
	RegisterError(errBenchOffline, http.StatusServiceUnavailable, "BENCH_OFFLINE")

	Convey("Registered errors carry their own code", t, func() {
		wrapped := fmt.Errorf("open tool: %w", errBenchOffline)
		So(ErrorStatus(wrapped), ShouldEqual, http.StatusServiceUnavailable)

		resp := respond(http.StatusServiceUnavailable, wrapped)
		So(resp.Success, ShouldBeFalse)
		So(resp.Error.Code, ShouldEqual, "BENCH_OFFLINE")
		So(resp.Error.Details, ShouldEqual, "open tool: bench offline")
		So(resp.RequestID, ShouldEqual, "req-1")
	})

	Convey("Unregistered errors fall back to the status code", t, func() {
		So(ErrorStatus(errors.New("boom")), ShouldEqual, http.StatusInternalServerError)
		So(ErrorStatus(nil), ShouldEqual, http.StatusInternalServerError)

		So(respond(http.StatusBadRequest, errors.New("bad")).Error.Code, ShouldEqual, "BAD_REQUEST")
		So(respond(http.StatusNotFound, nil).Error.Code, ShouldEqual, "NOT_FOUND")
	})

	Convey("A registered error answered with another status keeps the status code", t, func() {
		So(respond(http.StatusInternalServerError, errBenchOffline).Error.Code, ShouldEqual, "INTERNAL_SERVER_ERROR")
	})
}
