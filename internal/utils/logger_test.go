package utils

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"haptic-service/internal/config"
)

func TestLogger(t *testing.T) {
	Convey("Level names are parsed", t, func() {
		l, err := ParseLevel("warn")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, zapcore.WarnLevel)

		_, err = ParseLevel("verbose")
		So(err, ShouldNotBeNil)
	})

	Convey("A file output is rotated through lumberjack", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "haptic.log")
		logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
		So(err, ShouldBeNil)

		logger.Info("hello", zap.String("port", "COM3"))
		So(CloseLogger(logger), ShouldBeNil)

		body, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(body), ShouldContainSubstring, `"message":"hello"`)
		So(string(body), ShouldContainSubstring, `"port":"COM3"`)
	})

	Convey("Scoped loggers carry their context", t, func() {
		core, logs := observer.New(zap.DebugLevel)
		base := zap.New(core)

		NewServiceLogger(base, "session-service").LogServiceStop("test")
		So(logs.FilterField(zap.String("service", "session-service")).Len(), ShouldEqual, 1)

		NewServiceLogger(base, "http").LogAPIRequest("GET", "/x", "ua", "127.0.0.1", 503, 0)
		So(logs.FilterMessage("API request").All()[0].Level, ShouldEqual, zapcore.ErrorLevel)
	})
}
