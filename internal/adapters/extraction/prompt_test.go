package extraction

import (
	"strings"
	"testing"

	"github.com/okian/corep/internal/domain/model"
	corep "github.com/okian/corep/internal/domain/template"
	"github.com/smartystreets/goconvey/convey"
)

func TestBuildPrompt(t *testing.T) {
	convey.Convey("Given the own funds template", t, func() {
		docs := []model.RetrievedDocument{
			{Reference: "CRR Article 26(1)", Content: "CET1 items"},
			{Reference: "CRR Article 72", Content: "Own funds"},
		}
		p, err := BuildPrompt(corep.OwnFunds, "How much Tier 1?", "Bank issued AT1 of 100m", docs)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the system prompt lists every row, totals in bold", func() {
			schema, _ := corep.SchemaFor(corep.OwnFunds)
			for _, r := range schema.Rows {
				convey.So(p.System, convey.ShouldContainSubstring, "**Row "+r.Code+"**")
			}
			convey.So(p.System, convey.ShouldContainSubstring, "**Row 700**: **"+corep.Label("700")+"**")
			convey.So(p.System, convey.ShouldContainSubstring, "5. Use GBP as the default currency for UK banks")
		})

		convey.Convey("Then the user prompt has its sections in order", func() {
			order := []string{"## User Question", "## Scenario Description", "## Regulatory Context", "## Task"}
			last := -1
			for _, h := range order {
				i := strings.Index(p.User, h)
				convey.So(i, convey.ShouldBeGreaterThan, last)
				last = i
			}
			convey.So(p.User, convey.ShouldContainSubstring, "Bank issued AT1 of 100m")
		})

		convey.Convey("Then passages are separated by rules", func() {
			convey.So(Context(docs), convey.ShouldEqual,
				"**Source: CRR Article 26(1)**\nCET1 items\n\n---\n\n**Source: CRR Article 72**\nOwn funds")
		})
	})

	convey.Convey("Given no passages", t, func() {
		convey.So(Context(nil), convey.ShouldBeEmpty)
	})

	convey.Convey("Given an unknown template type", t, func() {
		_, err := BuildPrompt("C99", "q", "", nil)
		convey.So(err, convey.ShouldWrap, corep.ErrUnsupportedTemplateType)
	})
}
