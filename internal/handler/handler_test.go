package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/discovery"
	"haptic-service/internal/discovery/emulated"
	"haptic-service/internal/handler"
	"haptic-service/internal/portal"
	"haptic-service/internal/protocol"
	"haptic-service/internal/repository"
	"haptic-service/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig() *config.Config {
	serial := config.SerialPortConfig{MaxPollCount: 100}
	return &config.Config{
		App: config.AppConfig{Name: "haptic-service", Version: "test"},
		Device: config.DeviceConfig{
			PortName:        "EMU-TOOL",
			Transport:       "emulated",
			Scale:           1,
			ForceScale:      1,
			MaxOpeningAngle: 60,
			Serial:          serial,
		},
		IBox: config.IBoxConfig{
			Enabled:   true,
			PortName:  "EMU-IBOX",
			Transport: "emulated",
			LoopGainP: 2.5,
			Serial:    serial,
		},
		Loop: config.LoopConfig{
			PollPeriod:        200 * time.Microsecond,
			CopyPeriod:        100 * time.Microsecond,
			Pacing:            "sleep",
			FrequencyLogEvery: 1000,
			StatusDumpEvery:   30000,
			JawArmLength:      25,
			JawOffsetAngle:    0.38,
			HandleForceGain:   3,
			ForceTimeout:      time.Second,
		},
	}
}

const procedureXML = `<Procedure Name="Cholecystectomy"><Portals>
<Portal Number="0"><PortalSettings Rail="1" RailPos="12.5" FlipAngle="-30" TiltAngle="15.25" ComPort="//./COM3"/></Portal>
</Portals></Procedure>`

func do(router http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	Convey("Given the HTTP surface over emulated devices", t, func() {
		cfg := testConfig()
		registry := protocol.NewRegistry(zap.NewNop())
		bench := service.NewEmulatorBench(cfg, registry)

		events := service.NewEventBus(zap.NewNop())
		go events.Start()
		defer events.Close()

		svc := service.NewSessionService(cfg, registry, repository.NewMemoryRepository(10, zap.NewNop()), events, zap.NewNop())

		procedure, err := portal.Parse(strings.NewReader(procedureXML))
		So(err, ShouldBeNil)

		scanners := discovery.NewScannerManager(zap.NewNop())
		scanners.RegisterScanner(emulated.NewScanner(bench))

		router := gin.New()
		api := router.Group("/api/v1")
		handler.NewHapticHandler(svc, zap.NewNop()).RegisterRoutes(api)
		handler.NewSessionHandler(svc, zap.NewNop()).RegisterRoutes(api)
		handler.NewPortalHandler(procedure).RegisterRoutes(api)
		handler.NewDiscoveryHandler(scanners, zap.NewNop()).RegisterRoutes(api)
		handler.NewHealthHandler(nil, svc, cfg, zap.NewNop()).RegisterRoutes(router.Group(""))

		Convey("loop routes answer 503 before the devices are opened", func() {
			w, env := do(router, http.MethodGet, "/api/v1/telemetry", nil)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(env.Error.Code, ShouldEqual, "DEVICES_NOT_OPENED")
		})

		So(svc.Open(ctx), ShouldBeNil)
		defer svc.Close(ctx)

		Convey("a session can be started, listed and stopped", func() {
			w, env := do(router, http.MethodPost, "/api/v1/loop/start", nil)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var started struct {
				ID uuid.UUID `json:"id"`
			}
			So(json.Unmarshal(env.Data, &started), ShouldBeNil)

			w, env = do(router, http.MethodPost, "/api/v1/loop/start", nil)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(env.Error.Code, ShouldEqual, "SESSION_ACTIVE")

			w, _ = do(router, http.MethodGet, "/api/v1/loop", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			w, _ = do(router, http.MethodPost, "/api/v1/loop/stop", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			w, env = do(router, http.MethodPost, "/api/v1/loop/stop", nil)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(env.Error.Code, ShouldEqual, "NO_ACTIVE_SESSION")

			w, env = do(router, http.MethodGet, "/api/v1/sessions?status=completed", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var page struct {
				Total int `json:"total"`
			}
			So(json.Unmarshal(env.Data, &page), ShouldBeNil)
			So(page.Total, ShouldEqual, 1)

			w, _ = do(router, http.MethodGet, "/api/v1/sessions/"+started.ID.String(), nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			w, env = do(router, http.MethodGet, "/api/v1/sessions/"+uuid.New().String(), nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(env.Error.Code, ShouldEqual, "SESSION_NOT_FOUND")
			w, _ = do(router, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("bad filters are rejected", func() {
			w, _ := do(router, http.MethodGet, "/api/v1/sessions?start_date=yesterday", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("forces need all six values", func() {
			w, _ := do(router, http.MethodPost, "/api/v1/forces", []byte(`{}`))
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w, _ = do(router, http.MethodPost, "/api/v1/forces", []byte(`{"forces":[1,2,3,4,0,0]}`))
			So(w.Code, ShouldEqual, http.StatusOK)

			w, env := do(router, http.MethodPost, "/api/v1/articulations", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var articulations []float64
			So(json.Unmarshal(env.Data, &articulations), ShouldBeNil)
			So(len(articulations), ShouldEqual, 6)
		})

		Convey("simulation signals are parsed", func() {
			w, _ := do(router, http.MethodPost, "/api/v1/simulation/started", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			w, _ = do(router, http.MethodPost, "/api/v1/simulation/paused", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("device links are described", func() {
			w, env := do(router, http.MethodGet, "/api/v1/device", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var devices []service.DeviceInfo
			So(json.Unmarshal(env.Data, &devices), ShouldBeNil)
			So(len(devices), ShouldEqual, 2)
			So(devices[0].Identity, ShouldEqual, "HapticAvatar Tool EMU")
		})

		Convey("portals are looked up by COM port", func() {
			w, _ := do(router, http.MethodGet, "/api/v1/portals", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			w, env := do(router, http.MethodGet, "/api/v1/portals/COM3", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var p portal.Portal
			So(json.Unmarshal(env.Data, &p), ShouldBeNil)
			So(p.Rail, ShouldEqual, 1)

			w, _ = do(router, http.MethodGet, "/api/v1/portals/COM9", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("discovery lists the emulated ports", func() {
			w, env := do(router, http.MethodGet, "/api/v1/discovery/ports", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var result struct {
				DevicesFound int `json:"devices_found"`
			}
			So(json.Unmarshal(env.Data, &result), ShouldBeNil)
			So(result.DevicesFound, ShouldEqual, 2)

			w, _ = do(router, http.MethodGet, "/api/v1/discovery/ports?type=usb", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w, _ = do(router, http.MethodGet, "/api/v1/discovery/scanners", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("health reports both devices without a database", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var health handler.HealthResponse
			So(json.Unmarshal(w.Body.Bytes(), &health), ShouldBeNil)
			So(health.Status, ShouldEqual, "healthy")
			So(health.Checks["tool"].Status, ShouldEqual, "healthy")
			So(health.Checks["ibox"].Status, ShouldEqual, "healthy")
			_, hasDB := health.Checks["database"]
			So(hasDB, ShouldBeFalse)

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Without a procedure file portal routes answer 404", t, func() {
		router := gin.New()
		handler.NewPortalHandler(nil).RegisterRoutes(router.Group(""))
		w, _ := do(router, http.MethodGet, "/portals", nil)
		So(w.Code, ShouldEqual, http.StatusNotFound)
	})
}

func TestWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	Convey("Given a telemetry stream over a running session", t, func() {
		cfg := testConfig()
		registry := protocol.NewRegistry(zap.NewNop())
		service.NewEmulatorBench(cfg, registry)

		events := service.NewEventBus(zap.NewNop())
		go events.Start()
		defer events.Close()

		svc := service.NewSessionService(cfg, registry, repository.NewMemoryRepository(10, zap.NewNop()), events, zap.NewNop())
		So(svc.Open(ctx), ShouldBeNil)
		defer svc.Close(ctx)

		ws := handler.NewWebSocketHandler(svc, 5*time.Millisecond, []string{"http://localhost:3000"}, zap.NewNop())
		defer ws.Close()

		router := gin.New()
		ws.RegisterRoutes(router.Group("/ws"))
		server := httptest.NewServer(router)
		defer server.Close()
		url := "ws" + strings.TrimPrefix(server.URL, "http")

		readUntil := func(conn *websocket.Conn, kind string) map[string]interface{} {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				var msg map[string]interface{}
				if err := conn.ReadJSON(&msg); err != nil {
					return nil
				}
				if msg["type"] == kind {
					return msg
				}
			}
		}

		Convey("events are pushed to subscribers", func() {
			conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/events", nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			// Registration with the connection manager completes asynchronously.
			time.Sleep(20 * time.Millisecond)
			_, err = svc.StartSession(ctx)
			So(err, ShouldBeNil)
			defer svc.StopSession(ctx)

			msg := readUntil(conn, "loop_event")
			So(msg, ShouldNotBeNil)
		})

		Convey("telemetry streams and forces are answered with articulations", func() {
			_, err := svc.StartSession(ctx)
			So(err, ShouldBeNil)
			defer svc.StopSession(ctx)

			conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/telemetry", nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			So(readUntil(conn, "telemetry"), ShouldNotBeNil)

			So(conn.WriteJSON(map[string]interface{}{"forces": []float64{1, 2, 3, 4, 0, 0}}), ShouldBeNil)
			reply := readUntil(conn, "articulations")
			So(reply, ShouldNotBeNil)
			So(len(reply["data"].([]interface{})), ShouldEqual, 6)

			So(conn.WriteJSON(map[string]interface{}{"type": "dance"}), ShouldBeNil)
			So(readUntil(conn, "error"), ShouldNotBeNil)
		})

		Convey("foreign origins are refused", func() {
			header := http.Header{}
			header.Set("Origin", "http://evil.example")
			_, resp, err := websocket.DefaultDialer.Dial(url+"/ws/telemetry", header)
			So(err, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
		})
	})
}
