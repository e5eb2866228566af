package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then collectors are registered under the padcal namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.pollTicks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "padcal_pad_poll_ticks_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithPollBuckets([]float64{0.1, 0.5, 1.0}),
				WithLatencyBuckets([]float64{1, 10}),
				WithPollRecording(false),
				WithConstLabels(prometheus.Labels{"pad": "left"}),
				WithRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.pollBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.latencyBuckets, ShouldResemble, []float64{1, 10})
				So(manager.pollRecording, ShouldBeFalse)
			})

			Convey("And every series carries the constant labels", func() {
				manager.pollDuration.Observe(0.3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() != "test_unit_poll_duration_milliseconds" {
						continue
					}
					found = true
					h := f.GetMetric()[0].GetHistogram()
					So(h.GetBucket(), ShouldHaveLength, 3)
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "left")
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with defaults", func() {
			manager := NewManager(WithRegistry(prometheus.NewRegistry()))

			Convey("Then histograms use millisecond layouts", func() {
				So(manager.pollBuckets[0], ShouldEqual, 0.05)
				So(manager.latencyBuckets[0], ShouldEqual, 0.25)
				So(manager.pollRecording, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording sensor transitions", func() {
			before := gatherValue("padcal_pad_sensor_transitions_total", map[string]string{"sensor": "7", "state": "pressed"})
			if before < 0 {
				before = 0
			}
			RecordSensorTransition(7, true)

			Convey("Then the labelled counter increases", func() {
				after := gatherValue("padcal_pad_sensor_transitions_total", map[string]string{"sensor": "7", "state": "pressed"})
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating the release mode", func() {
			UpdateReleaseMode("global", []string{"none", "global", "individual"})

			Convey("Then only the active mode is flagged", func() {
				So(gatherValue("padcal_pad_release_mode", map[string]string{"mode": "global"}), ShouldEqual, 1)
				So(gatherValue("padcal_pad_release_mode", map[string]string{"mode": "none"}), ShouldEqual, 0)
			})
		})

		Convey("When updating gauges", func() {
			UpdateDeviceConnected(true)
			UpdateSensorCount(4)
			UpdateButtonPressed(2, true)

			Convey("Then the values are visible", func() {
				So(gatherValue("padcal_pad_device_connected", nil), ShouldEqual, 1)
				So(gatherValue("padcal_pad_sensors", nil), ShouldEqual, 4)
				So(gatherValue("padcal_pad_button_pressed", map[string]string{"button": "2"}), ShouldEqual, 1)
			})

			Convey("And resetting sensor series clears per-button gauges", func() {
				ResetSensorSeries()
				So(gatherValue("padcal_pad_button_pressed", map[string]string{"button": "2"}), ShouldEqual, -1)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordPollTick(1.5)
				UpdatePollingRate(100)
				UpdateSensorValue(0, 0.5)
				RecordSessionStarted()
				RecordSessionConflict()
				RecordSessionCommitted()
				RecordSessionCancelled("timeout")
				RecordCommandEnqueued("set_threshold")
				RecordCommandDropped("set_threshold", "queue_full")
				RecordCommandFailed("set_threshold")
				RecordCommandLatency(2)
				UpdateCommandQueueSize(1)
				UpdateCommandQueueCapacity(64)
				RecordProfileLoad("ok")
				RecordProfileSave("ok")
				RecordHTTPRequest("pad", "GET", "200")
				RecordHTTPRequestDuration("pad", "GET", "200", 1)
				RecordErrorByComponent("worker", "device_write")
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

// gatherValue returns the value of the series matching name and labels on the
// package registry, or -1 when no such series exists.
func gatherValue(name string, labels map[string]string) float64 {
	families, err := GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return -1
}
