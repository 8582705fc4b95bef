package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "tiergate")
				So(manager.subsystem, ShouldEqual, "validator")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(
				WithNamespace("guild"),
				WithSubsystem("gate"),
				WithMetricPrefix("x_"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.submissionsReceived.Inc()

			Convey("Then metric names carry the prefix and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "guild_gate_x_submissions_received_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithCustomLabels(nil),
				WithPrometheusRegistry(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults survive", func() {
				So(manager.namespace, ShouldEqual, "tiergate")
				So(manager.subsystem, ShouldEqual, "validator")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
				So(manager.customLabels, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When submissions are recorded", func() {
			before := testutil.ToFloat64(globalManager.submissionsReceived)
			RecordSubmissionReceived()
			RecordSubmissionReceived()

			Convey("Then the counter grows", func() {
				So(testutil.ToFloat64(globalManager.submissionsReceived), ShouldEqual, before+2)
			})
		})

		Convey("When verdicts are recorded", func() {
			before := testutil.ToFloat64(globalManager.verdicts.WithLabelValues("ERROR"))
			RecordVerdict("ERROR")

			Convey("Then they are split by severity", func() {
				So(testutil.ToFloat64(globalManager.verdicts.WithLabelValues("ERROR")), ShouldEqual, before+1)
			})
		})

		Convey("When store operations are recorded", func() {
			okBefore := testutil.ToFloat64(globalManager.storeOperations.WithLabelValues("get", "memory", "ok"))
			errBefore := testutil.ToFloat64(globalManager.storeOperations.WithLabelValues("get", "memory", "error"))
			RecordStoreOperation("get", "memory", 1.5, nil)
			RecordStoreOperation("get", "memory", 2.5, errors.New("boom"))

			Convey("Then the outcome label follows the error", func() {
				So(testutil.ToFloat64(globalManager.storeOperations.WithLabelValues("get", "memory", "ok")), ShouldEqual, okBefore+1)
				So(testutil.ToFloat64(globalManager.storeOperations.WithLabelValues("get", "memory", "error")), ShouldEqual, errBefore+1)
			})
		})

		Convey("When gauges are set", func() {
			UpdateQueueSize(12)
			UpdateQueueCapacity(100)
			UpdateQueueUtilization(0.12)
			UpdateWorkerCount(4)
			UpdateSubmissionsByStatus("pending", 3)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.submissionsByStatus.WithLabelValues("pending")), ShouldEqual, 3)
			})
		})

		Convey("When the remaining recorders run", func() {
			So(func() {
				RecordSubmissionDuplicate()
				RecordValidationLatency(12)
				RecordValidationError("fetch")
				RecordLogFetch("ok", 30)
				RecordLogFetch("cached", 0.2)
				RecordStoreConflict()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(3)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(8)
				RecordWorkerError()
				RecordHTTPRequest("/v1/submissions", "POST", "202")
				RecordHTTPRequestDuration("/v1/submissions", "POST", "202", 4)
				RecordErrorByComponent("worker", "fetch")
				RecordErrorByEndpoint("/v1/submissions", "POST", "validation")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
		})

		Convey("Then the registry exposes the metrics", func() {
			RecordSubmissionReceived()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueueRate)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					RecordQueueEnqueue()
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueueRate), ShouldEqual, before+1000)
		})
	})
}
