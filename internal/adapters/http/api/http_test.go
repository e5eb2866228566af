package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/padcal/internal/adapters/http/api"
	"github.com/okian/padcal/internal/adapters/repository"
	service "github.com/okian/padcal/internal/app"
	"github.com/okian/padcal/internal/domain/pad"
	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/threshold"
	"github.com/okian/padcal/internal/domain/types"
	"github.com/okian/padcal/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDeps records calls and returns canned results.
type mockDeps struct {
	err        error
	started    bool
	snap       types.Snapshot
	prof       profile.Profile
	imported   *profile.Profile
	thresholds map[int]threshold.Pair
	buttons    map[int]int
	mode       release.Mode
	ratio      float64
	saved      []string
	loaded     []string
	read       []string
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		started:    true,
		thresholds: map[int]threshold.Pair{},
		buttons:    map[int]int{},
		snap: types.Snapshot{
			ReleaseMode: "none",
			GlobalRatio: 0.8,
			Sensors:     []types.SensorView{{Index: 0}, {Index: 1}},
			Buttons:     []types.ButtonView{},
		},
		prof: profile.Profile{
			Version:     profile.Version,
			ReleaseMode: release.None,
			Sensors:     map[int]threshold.Pair{0: {Activation: 0.5, Release: 0.5}},
			Mapping:     map[int]int{0: 1},
		},
	}
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"connected": true, "sensors": 2}
}

func (m *mockDeps) Snapshot(bool) types.Snapshot { return m.snap }

func (m *mockDeps) SetThresholds(_ context.Context, sensor int, a, r float64) error {
	if m.err != nil {
		return m.err
	}
	m.thresholds[sensor] = threshold.Pair{Activation: a, Release: r}
	return nil
}

func (m *mockDeps) SetReleaseMode(_ context.Context, mode release.Mode, ratio float64) error {
	if m.err != nil {
		return m.err
	}
	m.mode, m.ratio = mode, ratio
	return nil
}

func (m *mockDeps) SetButton(_ context.Context, sensor, button int) error {
	if m.err != nil {
		return m.err
	}
	m.buttons[sensor] = button
	return nil
}

func (m *mockDeps) BeginDrag(context.Context, int, session.Edit) (bool, error) {
	return m.started, m.err
}

func (m *mockDeps) MoveDrag(context.Context, float64, session.Extent) (bool, error) {
	return true, m.err
}

func (m *mockDeps) EndDrag(context.Context) (bool, error) { return true, m.err }

func (m *mockDeps) CancelDrag(context.Context) bool { return false }

func (m *mockDeps) ExportProfile(context.Context) (profile.Profile, error) { return m.prof, m.err }

func (m *mockDeps) ImportProfile(_ context.Context, prof profile.Profile) error {
	if m.err != nil {
		return m.err
	}
	m.imported = &prof
	return nil
}

func (m *mockDeps) SaveProfile(_ context.Context, name string) error {
	m.saved = append(m.saved, name)
	return m.err
}

func (m *mockDeps) LoadProfile(_ context.Context, name string) error {
	m.loaded = append(m.loaded, name)
	return m.err
}

func (m *mockDeps) StoredProfile(_ context.Context, name string) (profile.Profile, error) {
	m.read = append(m.read, name)
	return m.prof, m.err
}

func (m *mockDeps) ListProfiles(context.Context) ([]repository.Entry, error) {
	return []repository.Entry{{Name: "a.json", Format: "json"}}, m.err
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, 10*time.Millisecond).Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API", t, func() {
		mux := newMux(newMockDeps())

		Convey("When GET /healthz", func() {
			rec := do(mux, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("When GET /metrics", func() {
			rec := do(mux, http.MethodGet, "/metrics", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When GET /stats", func() {
			rec := do(mux, http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["connected"], ShouldEqual, true)
		})

		Convey("When using the wrong method", func() {
			rec := do(mux, http.MethodPost, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestCalibrationEndpoints(t *testing.T) {
	Convey("Given the API over a mock service", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When GET /pad", func() {
			rec := do(mux, http.MethodGet, "/pad", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var snap types.Snapshot
			So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
			So(snap.Sensors, ShouldHaveLength, 2)
		})

		Convey("When setting thresholds", func() {
			rec := do(mux, http.MethodPut, "/sensors/1/thresholds", `{"activation":0.7,"release":0.3}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.thresholds[1], ShouldResemble, threshold.Pair{Activation: 0.7, Release: 0.3})
		})

		Convey("When setting thresholds without release", func() {
			deps.snap.ReleaseMode = "individual"
			deps.snap.Sensors[0].Release = 0.35
			rec := do(mux, http.MethodPut, "/sensors/0/thresholds", `{"activation":0.6}`)

			Convey("Then the sensor keeps its current release", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.thresholds[0], ShouldResemble, threshold.Pair{Activation: 0.6, Release: 0.35})
			})
		})

		Convey("When the request is malformed", func() {
			So(do(mux, http.MethodPut, "/sensors/x/thresholds", `{"activation":0.5}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/sensors/0/thresholds", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/sensors/0/thresholds", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/sensors/0/button", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/release-mode", `{"mode":"sometimes"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the device is unavailable", func() {
			deps.err = fmt.Errorf("tick: %w", service.ErrNoDevice)
			rec := do(mux, http.MethodPut, "/sensors/0/thresholds", `{"activation":0.5}`)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the sensor is unknown", func() {
			deps.err = pad.ErrUnknownSensor
			So(do(mux, http.MethodPut, "/sensors/9/thresholds", `{"activation":0.5}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When mapping a button", func() {
			rec := do(mux, http.MethodPut, "/sensors/1/button", `{"button":3}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.buttons[1], ShouldEqual, 3)
		})

		Convey("When switching release mode without a ratio", func() {
			rec := do(mux, http.MethodPut, "/release-mode", `{"mode":"global"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.mode, ShouldEqual, release.Global)
			So(deps.ratio, ShouldEqual, 0.8)
		})
	})
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given the API over a mock service", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When beginning a drag", func() {
			rec := do(mux, http.MethodPost, "/session", `{"sensor":1,"edit":"activation"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("When another drag is already active", func() {
			deps.started = false
			rec := do(mux, http.MethodPost, "/session", `{"sensor":1}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"started":false`)
		})

		Convey("When a release drag is locked", func() {
			deps.err = pad.ErrReleaseLocked
			rec := do(mux, http.MethodPost, "/session", `{"sensor":1,"edit":"release"}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the edit or sensor is invalid", func() {
			So(do(mux, http.MethodPost, "/session", `{"sensor":1,"edit":"both"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/session", `{"edit":"release"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When moving, ending and cancelling", func() {
			So(do(mux, http.MethodPost, "/session/move", `{"y":10,"extent":{"top":0,"height":100}}`).Body.String(),
				ShouldContainSubstring, `"moved":true`)
			So(do(mux, http.MethodPost, "/session/end", "").Body.String(), ShouldContainSubstring, `"committed":true`)
			So(do(mux, http.MethodDelete, "/session", "").Body.String(), ShouldContainSubstring, `"cancelled":false`)
		})
	})
}

func TestProfileEndpoints(t *testing.T) {
	Convey("Given the API over a mock service", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When exporting as JSON", func() {
			rec := do(mux, http.MethodGet, "/profile", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(rec.Body.String(), ShouldContainSubstring, `"releaseMode": "none"`)
		})

		Convey("When exporting as YAML", func() {
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			req.Header.Set("Accept", "application/yaml")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "releaseMode: none")
		})

		Convey("When importing a valid profile", func() {
			rec := do(mux, http.MethodPut, "/profile",
				`{"version":1,"releaseMode":"individual","sensors":{"0":{"activation":0.6,"release":0.2}}}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.imported, ShouldNotBeNil)
			So(deps.imported.ReleaseMode, ShouldEqual, release.Individual)
		})

		Convey("When importing a malformed profile", func() {
			rec := do(mux, http.MethodPut, "/profile", `{"version":1,"releaseMode":"global","sensors":{}}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.imported, ShouldBeNil)
		})

		Convey("When saving and loading named profiles", func() {
			So(do(mux, http.MethodPost, "/profiles/stage", "").Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/profiles/stage/load", "").Code, ShouldEqual, http.StatusOK)
			So(deps.saved, ShouldResemble, []string{"stage"})
			So(deps.loaded, ShouldResemble, []string{"stage"})
		})

		Convey("When fetching a named profile", func() {
			rec := do(mux, http.MethodGet, "/profiles/stage", "")

			Convey("Then the document is returned and nothing is applied", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"releaseMode": "none"`)
				So(deps.read, ShouldResemble, []string{"stage"})
				So(deps.loaded, ShouldBeEmpty)
				So(deps.imported, ShouldBeNil)
			})

			Convey("And loading is not reachable through GET", func() {
				So(do(mux, http.MethodGet, "/profiles/stage/load", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(deps.loaded, ShouldBeEmpty)
			})
		})

		Convey("When listing profiles", func() {
			rec := do(mux, http.MethodGet, "/profiles", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "a.json")
		})

		Convey("When the stored profile is missing", func() {
			deps.err = fmt.Errorf("load profile x: %w", repository.ErrNotFound)
			So(do(mux, http.MethodGet, "/profiles/x", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/profiles/x/load", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLiveStream(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := httptest.NewServer(newMux(newMockDeps()))
		defer srv.Close()

		Convey("When a client connects to /live", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			Convey("Then it receives pad snapshots", func() {
				for range 2 {
					var snap types.Snapshot
					So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
					So(conn.ReadJSON(&snap), ShouldBeNil)
					So(snap.Sensors, ShouldHaveLength, 2)
				}
			})
		})
	})
}

func TestLiveOrigin(t *testing.T) {
	Convey("Given a live stream that also admits one dashboard origin", t, func() {
		mux := http.NewServeMux()
		api.NewServer(newMockDeps(), 10*time.Millisecond, api.WithLiveOrigins("http://dashboard.local:3000")).Register(mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"

		dial := func(origin string) (int, error) {
			conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
			if conn != nil {
				_ = conn.Close()
			}
			if resp == nil {
				return 0, err
			}
			defer resp.Body.Close()
			return resp.StatusCode, err
		}

		Convey("When a foreign page connects", func() {
			status, err := dial("http://evil.example")

			Convey("Then the handshake is refused", func() {
				So(errors.Is(err, websocket.ErrBadHandshake), ShouldBeTrue)
				So(status, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When the server's own page or the listed dashboard connects", func() {
			for _, origin := range []string{srv.URL, "http://DASHBOARD.local:3000"} {
				status, err := dial(origin)
				So(err, ShouldBeNil)
				So(status, ShouldEqual, http.StatusSwitchingProtocols)
			}
		})
	})

	Convey("Given a live stream with no extra origins", t, func() {
		srv := httptest.NewServer(newMux(newMockDeps()))
		defer srv.Close()
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"

		Convey("When a cross-origin page connects", func() {
			_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})

			Convey("Then only same-origin pages are accepted", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})
	})
}
