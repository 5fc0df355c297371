package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/corep/internal/adapters/repository"
	"github.com/okian/corep/internal/adapters/retrieval"
	service "github.com/okian/corep/internal/app"
	"github.com/okian/corep/internal/domain/audit"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 3, 31, 17, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeRetriever struct {
	docs []model.RetrievedDocument
	err  error
	k    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string, k int) ([]model.RetrievedDocument, error) {
	f.k = k
	return f.docs, f.err
}

type fakeExtractor struct {
	ext *model.Extraction
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string, _ []model.RetrievedDocument, templateType string) (*model.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.ext
	out.TemplateType = templateType
	return &out, nil
}

func sources() []model.RetrievedDocument {
	return []model.RetrievedDocument{
		{Reference: "CRR Article 26(1)", Content: "CET1 items consist of capital instruments and retained earnings.", Score: 0.82},
		{Reference: "CRR Article 36(1)(b)", Content: "Goodwill is deducted from CET1.", Score: 0.55},
	}
}

func scenario() *model.Extraction {
	return &model.Extraction{
		Fields: []model.FieldMapping{
			{Row: "010", FieldName: "Capital instruments", Value: model.Amount(500_000_000), SourceReference: "CRR Article 26(1)", Reasoning: "Ordinary shares"},
			{Row: "030", FieldName: "Retained earnings", Value: model.Amount(200_000_000), SourceReference: "CRR Article 26(1)"},
			{Row: "080", FieldName: "Goodwill", Value: model.Amount(-50_000_000), SourceReference: "CRR Article 36(1)(b)"},
		},
		Reasoning:  "Bank with ordinary shares, retained earnings and goodwill",
		Confidence: 0.9,
		Warnings:   []string{"No AT1 instruments"},
	}
}

func started(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithClock(clock), service.WithCacheTTL(0)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should not be started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then pipeline calls are refused", func() {
			_, err := svc.Query(context.Background(), "q", "", template.OwnFunds)
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Assemble(context.Background(), template.OwnFunds, scenario(), nil)
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := started(service.WithRetriever(&fakeRetriever{}))

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
		})

		Convey("When stopping the service", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a corpus path that does not exist", t, func() {
		svc := service.New(service.WithCorpusPath("/nonexistent/corpus.yaml"))

		Convey("Then start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, retrieval.ErrLoadCorpus), ShouldBeTrue)
		})
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()

	Convey("Given collaborators returning the goodwill scenario", t, func() {
		ret := &fakeRetriever{docs: sources()}
		svc := started(
			service.WithRetriever(ret),
			service.WithExtractor(&fakeExtractor{ext: scenario()}),
			service.WithTopK(3),
		)
		defer svc.Stop()

		Convey("When the question is answered", func() {
			r, err := svc.Query(ctx, "What is our CET1?", "", template.OwnFunds)
			So(err, ShouldBeNil)

			Convey("Then the template is derived", func() {
				So(ret.k, ShouldEqual, 3)
				So(*r.Template.Value("100"), ShouldEqual, 700_000_000.0)
				So(*r.Template.Value("200"), ShouldEqual, 650_000_000.0)
				So(*r.Template.Value("400"), ShouldEqual, 650_000_000.0)
				So(*r.Template.Value("700"), ShouldEqual, 650_000_000.0)
			})

			Convey("Then every rule runs and none blocks", func() {
				So(r.Validation, ShouldHaveLength, 7)
				So(r.ValidationSummary.Total, ShouldEqual, 7)
				So(r.ValidationSummary.Blocking, ShouldBeFalse)
			})

			Convey("Then the audit trail covers every field plus a summary", func() {
				So(r.AuditTrail, ShouldHaveLength, 4)
				So(r.AuditTrail[0].Confidence.SourceRetrieved, ShouldBeTrue)
				So(r.AuditTrail[0].Timestamp, ShouldEqual, "2026-03-31T17:00:00Z")
				So(r.AuditTrail[3].IsSummary(), ShouldBeTrue)
				So(r.AuditTrail[3].Summary.SourcesUsed, ShouldEqual, 2)
			})

			Convey("Then extraction output passes through", func() {
				So(r.ID, ShouldNotBeEmpty)
				So(r.Timestamp, ShouldEqual, "2026-03-31T17:00:00Z")
				So(r.Confidence, ShouldEqual, 0.9)
				So(r.Warnings, ShouldResemble, []string{"No AT1 instruments"})
				So(r.Reasoning, ShouldStartWith, "Bank with ordinary shares")
				So(r.RetrievedSources, ShouldHaveLength, 2)
				So(r.RetrievedSources[1].Content, ShouldEqual, "Goodwill is deducted from CET1....")
			})
		})

		Convey("When the template type is unknown", func() {
			_, err := svc.Query(ctx, "q", "", "C99")
			So(errors.Is(err, template.ErrUnsupportedTemplateType), ShouldBeTrue)
		})
	})

	Convey("Given a failing retriever", t, func() {
		cause := errors.New("index offline")
		svc := started(
			service.WithRetriever(&fakeRetriever{err: cause}),
			service.WithExtractor(&fakeExtractor{ext: scenario()}),
		)
		defer svc.Stop()

		_, err := svc.Query(ctx, "q", "", template.OwnFunds)
		So(errors.Is(err, service.ErrUpstream), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(svc.GetStats()["failedQueries"], ShouldEqual, int64(1))
	})

	Convey("Given a failing extractor", t, func() {
		cause := errors.New("model unavailable")
		svc := started(
			service.WithRetriever(&fakeRetriever{docs: sources()}),
			service.WithExtractor(&fakeExtractor{err: cause}),
		)
		defer svc.Stop()

		_, err := svc.Query(ctx, "q", "", template.OwnFunds)
		So(errors.Is(err, service.ErrUpstream), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
	})
}

func TestService_Assemble(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := started(service.WithRetriever(&fakeRetriever{}))
		defer svc.Stop()

		Convey("When a reported total contradicts its components", func() {
			ext := &model.Extraction{Fields: []model.FieldMapping{
				{Row: "010", FieldName: "Capital instruments", Value: model.Amount(500)},
				{Row: "100", FieldName: "CET1 before adjustments", Value: model.Amount(900)},
			}}
			r, err := svc.Assemble(ctx, template.OwnFunds, ext, nil)
			So(err, ShouldBeNil)

			Convey("Then the report is blocking", func() {
				So(r.ValidationSummary.Blocking, ShouldBeTrue)
				So(r.Validation[0].RuleID, ShouldEqual, "v0001")
				So(r.Validation[0].Passed, ShouldBeFalse)
				So(svc.GetStats()["blockingReports"], ShouldEqual, int64(1))
			})

			Convey("Then no sources means unresolved citations", func() {
				So(r.AuditTrail[0].SourceContent, ShouldEqual, audit.SourceUnavailable)
				So(r.RetrievedSources, ShouldBeEmpty)
				So(r.Warnings, ShouldNotBeNil)
			})
		})

		Convey("When rows fall outside the template", func() {
			ext := &model.Extraction{Fields: []model.FieldMapping{
				{Row: "010", FieldName: "Capital instruments", Value: model.Amount(5)},
				{Row: "999", FieldName: "Unknown", Value: model.Amount(1)},
			}}
			r, err := svc.Assemble(ctx, template.OwnFunds, ext, nil)
			So(err, ShouldBeNil)
			So(r.UnmappedRows, ShouldResemble, []string{"999"})
			So(r.AuditTrail, ShouldHaveLength, 3)
		})

		Convey("When no extraction is given", func() {
			_, err := svc.Assemble(ctx, template.OwnFunds, nil, nil)
			So(err, ShouldEqual, service.ErrNoInput)
		})

		Convey("When the template type is unknown", func() {
			_, err := svc.Assemble(ctx, "C99", scenario(), nil)
			So(errors.Is(err, template.ErrUnsupportedTemplateType), ShouldBeTrue)
		})

		Convey("When many reports are assembled concurrently", func() {
			const n = 16
			var wg sync.WaitGroup
			ids := make([]string, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					r, err := svc.Assemble(ctx, template.OwnFunds, scenario(), sources())
					errs[i] = err
					if r != nil {
						ids[i] = r.ID
					}
				}(i)
			}
			wg.Wait()

			Convey("Then each gets its own report", func() {
				seen := map[string]bool{}
				for i := 0; i < n; i++ {
					So(errs[i], ShouldBeNil)
					So(seen[ids[i]], ShouldBeFalse)
					seen[ids[i]] = true
				}
				So(svc.GetStats()["reports"], ShouldEqual, int64(n))
			})
		})
	})
}

func TestService_History(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that is not started", t, func() {
		svc := service.New()
		_, err := svc.Report(ctx, "any")
		So(err, ShouldEqual, service.ErrNotStarted)
		_, err = svc.RecentReports(ctx, 5)
		So(err, ShouldEqual, service.ErrNotStarted)
	})

	Convey("Given a service keeping two reports", t, func() {
		svc := started(
			service.WithRetriever(&fakeRetriever{}),
			service.WithReportStore(repository.NewMemoryStore(repository.WithCapacity(2))),
		)
		defer svc.Stop()

		ids := make([]string, 3)
		for i := range ids {
			r, err := svc.Assemble(ctx, template.OwnFunds, scenario(), sources())
			So(err, ShouldBeNil)
			ids[i] = r.ID
		}

		Convey("Then assembled reports can be fetched again", func() {
			r, err := svc.Report(ctx, ids[2])
			So(err, ShouldBeNil)
			So(*r.Template.Row700, ShouldEqual, 650_000_000.0)
		})

		Convey("Then the oldest report was evicted", func() {
			_, err := svc.Report(ctx, ids[0])
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(svc.GetStats()["storedReports"], ShouldEqual, 2)
		})

		Convey("Then recent reports are listed newest first", func() {
			list, err := svc.RecentReports(ctx, 10)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
			So(list[0].ID, ShouldEqual, ids[2])
			So(*list[0].TotalOwnFunds, ShouldEqual, 650_000_000.0)
		})
	})
}

func TestService_ExportAudit(t *testing.T) {
	Convey("Given extracted fields and sources", t, func() {
		svc := service.New(service.WithClock(clock))
		ext := scenario()

		Convey("When exported as CSV", func() {
			out, err := svc.ExportAudit(ext.Fields, sources(), ext.Reasoning, "csv")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "field_row,field_name,value,source_reference,reasoning,timestamp\n")
			So(out, ShouldContainSubstring, "010,Capital instruments,500000000,CRR Article 26(1),Ordinary shares,2026-03-31T17:00:00Z")
		})

		Convey("When exported as JSON", func() {
			out, err := svc.ExportAudit(ext.Fields, sources(), ext.Reasoning, "json")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, `"field_row": "080"`)
		})

		Convey("When the format is unknown", func() {
			_, err := svc.ExportAudit(ext.Fields, sources(), ext.Reasoning, "pdf")
			So(errors.Is(err, audit.ErrUnsupportedFormat), ShouldBeTrue)
		})
	})
}

func TestService_Catalogue(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()

		Convey("Then the own funds schema and rules are listed", func() {
			s, err := svc.Schema(template.OwnFunds)
			So(err, ShouldBeNil)
			So(s.Name, ShouldEqual, "Own Funds")

			rules, err := svc.Rules(template.OwnFunds)
			So(err, ShouldBeNil)
			So(rules, ShouldHaveLength, 7)
		})

		Convey("Then unknown types are rejected", func() {
			_, err := svc.Schema("C99")
			So(errors.Is(err, template.ErrUnsupportedTemplateType), ShouldBeTrue)
			_, err = svc.Rules("C99")
			So(errors.Is(err, template.ErrUnsupportedTemplateType), ShouldBeTrue)
		})
	})
}
