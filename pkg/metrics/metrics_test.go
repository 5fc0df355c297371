package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func total(name string) float64 {
	v, err := Total(name)
	if err != nil {
		return 0
	}
	return v
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithNamePrefix("pfx"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
			})

			Convey("And metric names carry namespace, subsystem and prefix", func() {
				manager.derivationFailures.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_pfx_derivation_failures_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registering the same metrics twice panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})

		Convey("When invalid option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithLatencyBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "corep")
				So(manager.subsystem, ShouldEqual, "reporting")
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestPipelineMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When reports are assembled", func() {
			before := total("corep_reporting_reports_assembled_total")
			RecordReportAssembled("C01", false)
			RecordReportAssembled("C01", true)

			Convey("Then both blocking states are counted", func() {
				So(total("corep_reporting_reports_assembled_total"), ShouldEqual, before+2)
			})
		})

		Convey("When validation outcomes are recorded", func() {
			before := total("corep_reporting_validation_results_total")
			RecordValidationResult("v0001", "ERROR", true)
			RecordValidationResult("v0011", "WARNING", false)

			Convey("Then each outcome is counted", func() {
				So(total("corep_reporting_validation_results_total"), ShouldEqual, before+2)
			})
		})

		Convey("When audit entries are recorded", func() {
			entries := total("corep_reporting_audit_entries_total")
			unresolved := total("corep_reporting_audit_unresolved_sources_total")
			RecordAuditEntries(3, 1)

			Convey("Then entries and unresolved citations are added", func() {
				So(total("corep_reporting_audit_entries_total"), ShouldEqual, entries+3)
				So(total("corep_reporting_audit_unresolved_sources_total"), ShouldEqual, unresolved+1)
			})
		})

		Convey("When unmapped rows are recorded", func() {
			before := total("corep_reporting_unmapped_rows_total")
			RecordUnmappedRows(0)
			RecordUnmappedRows(2)

			Convey("Then only positive counts are added", func() {
				So(total("corep_reporting_unmapped_rows_total"), ShouldEqual, before+2)
			})
		})

		Convey("When collaborator metrics are recorded", func() {
			So(func() {
				RecordRetrieval(12.5, 5)
				RecordExtraction(850, 4)
				RecordRetrievalCacheHit()
				RecordRetrievalCacheMiss()
				RecordPipelineLatency(900)
				RecordDerivationFailure()
				RecordRateLimited()
				UpdateCorpusPassages(24)
			}, ShouldNotPanic)

			Convey("Then the corpus gauge holds the last value", func() {
				UpdateCorpusPassages(30)
				So(total("corep_reporting_corpus_passages"), ShouldEqual, 30)
			})
		})
	})
}

func TestHTTPAndErrorMetrics(t *testing.T) {
	Convey("Given HTTP and error metrics", t, func() {
		So(func() {
			RecordHTTPRequest("/api/query", "POST", "200")
			RecordHTTPRequestDuration("/api/query", "POST", "200", 15)
			RecordHTTPRequest("", "", "")
			RecordErrorByComponent("extraction", "generate")
			RecordErrorByEndpoint("/api/query", "POST", "bad_gateway")
			UpdateSystemMemoryUsage(100 << 20)
			UpdateSystemGoroutineCount(12)
		}, ShouldNotPanic)
	})
}

func TestSetEnabled(t *testing.T) {
	Convey("Given recording is disabled", t, func() {
		before := total("corep_reporting_derivation_failures_total")
		SetEnabled(false)
		Reset(func() { SetEnabled(true) })

		RecordDerivationFailure()

		Convey("Then counters do not move", func() {
			So(total("corep_reporting_derivation_failures_total"), ShouldEqual, before)
		})
	})
}

func TestTotal(t *testing.T) {
	Convey("Given an unknown metric name", t, func() {
		_, err := Total("corep_reporting_nope")

		Convey("Then ErrUnknownMetric is returned", func() {
			So(errors.Is(err, ErrUnknownMetric), ShouldBeTrue)
		})
	})

	Convey("Given the custom registry", t, func() {
		So(GetRegistry(), ShouldNotBeNil)
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics recorded from many goroutines", t, func() {
		before := total("corep_reporting_retrieval_cache_hits_total")
		done := make(chan struct{}, 10)
		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					RecordRetrievalCacheHit()
					RecordHTTPRequest("/health", "GET", "200")
				}
				done <- struct{}{}
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		Convey("Then every increment is counted", func() {
			So(total("corep_reporting_retrieval_cache_hits_total"), ShouldEqual, before+1000)
		})
	})
}

func TestGaugeRefreshInterval(t *testing.T) {
	Convey("The global manager refreshes gauges on the default interval", t, func() {
		So(GaugeRefreshInterval(), ShouldEqual, defaultRefreshInterval)
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager rebuilt from options", t, func() {
		registry := Configure(
			WithNamespace("acme"),
			WithSubsystem("corep"),
			WithConstLabels(map[string]string{"deployment": "eu-1"}),
			WithRefreshInterval(3*time.Second),
		)
		Reset(func() { Configure() })

		RecordDerivationFailure()

		Convey("Then recording goes to the returned registry", func() {
			So(GetRegistry(), ShouldEqual, registry)
			So(total("acme_corep_derivation_failures_total"), ShouldEqual, 1)
			_, err := Total("corep_reporting_derivation_failures_total")
			So(errors.Is(err, ErrUnknownMetric), ShouldBeTrue)
		})

		Convey("Then every metric carries the constant labels", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(families, ShouldNotBeEmpty)
			for _, f := range families {
				for _, m := range f.GetMetric() {
					labels := map[string]string{}
					for _, l := range m.GetLabel() {
						labels[l.GetName()] = l.GetValue()
					}
					So(labels["deployment"], ShouldEqual, "eu-1")
				}
			}
		})

		Convey("Then the refresh interval follows the options", func() {
			So(GaugeRefreshInterval(), ShouldEqual, 3*time.Second)
		})
	})

	Convey("Given a disabled configuration", t, func() {
		Configure(WithMetricsEnabled(false))
		Reset(func() { Configure() })

		RecordDerivationFailure()

		Convey("Then the metrics are exposed but do not move", func() {
			So(total("corep_reporting_derivation_failures_total"), ShouldEqual, 0)
		})
	})
}
