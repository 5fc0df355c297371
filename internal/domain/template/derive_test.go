package template_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
	. "github.com/smartystreets/goconvey/convey"
)

func field(row string, v float64) model.FieldMapping {
	return model.FieldMapping{Row: row, FieldName: template.Label(row), Value: model.Amount(v)}
}

func TestDerive_Scenario(t *testing.T) {
	Convey("Given share capital and retained earnings only", t, func() {
		fields := []model.FieldMapping{
			field("010", 1_000_000_000),
			field("030", 200_000_000),
		}

		Convey("When the template is derived", func() {
			tpl, err := template.Derive(template.OwnFunds, fields)
			So(err, ShouldBeNil)

			Convey("Then every aggregate is back-filled", func() {
				So(*tpl.Row100, ShouldEqual, 1_200_000_000.0)
				So(*tpl.Row200, ShouldEqual, 1_200_000_000.0)
				So(*tpl.Row400, ShouldEqual, 1_200_000_000.0)
				So(*tpl.Row700, ShouldEqual, 1_200_000_000.0)
			})

			Convey("And Tier 2 stays unknown", func() {
				So(tpl.Row600, ShouldBeNil)
			})

			Convey("And the currency defaults to GBP", func() {
				So(tpl.Currency, ShouldEqual, model.DefaultCurrency)
			})
		})
	})
}

func TestDerive_Deductions(t *testing.T) {
	Convey("Given CET1 components with deductions", t, func() {
		base := []model.FieldMapping{field("010", 1000), field("020", 200)}

		Convey("When deductions are reported as positive amounts", func() {
			tpl, err := template.Derive(template.OwnFunds, append(base, field("080", 50), field("090", 25), field("095", 25)))
			So(err, ShouldBeNil)

			Convey("Then their magnitude is subtracted", func() {
				So(*tpl.Row100, ShouldEqual, 1200.0)
				So(*tpl.Row200, ShouldEqual, 1100.0)
			})
		})

		Convey("When the same deductions are reported as negative amounts", func() {
			tpl, err := template.Derive(template.OwnFunds, append(base, field("080", -50), field("090", -25), field("095", -25)))
			So(err, ShouldBeNil)

			Convey("Then the result is the same", func() {
				So(*tpl.Row200, ShouldEqual, 1100.0)
			})
		})

		Convey("When deductions of opposite sign cancel out", func() {
			tpl, err := template.Derive(template.OwnFunds, append(base, field("080", 50), field("090", -50)))
			So(err, ShouldBeNil)

			Convey("Then the magnitude of their sum is used", func() {
				So(*tpl.Row200, ShouldEqual, 1200.0)
			})
		})
	})
}

func TestDerive_TierTotals(t *testing.T) {
	Convey("Given CET1, AT1 and Tier 2 components", t, func() {
		fields := []model.FieldMapping{
			field("010", 900),
			field("080", 100),
			field("300", 60),
			field("310", 20),
			field("320", -30),
			field("500", 150),
			field("510", 10),
			field("520", 40),
		}

		tpl, err := template.Derive(template.OwnFunds, fields)
		So(err, ShouldBeNil)

		Convey("Then Tier 1 adds net AT1 to CET1", func() {
			So(*tpl.Row200, ShouldEqual, 800.0)
			So(tpl.NetAT1().InexactFloat64(), ShouldEqual, 50.0)
			So(*tpl.Row400, ShouldEqual, 850.0)
		})

		Convey("And Tier 2 nets its deductions", func() {
			So(*tpl.Row600, ShouldEqual, 120.0)
		})

		Convey("And the total adds both tiers", func() {
			So(*tpl.Row700, ShouldEqual, 970.0)
		})
	})

	Convey("Given Tier 2 deductions exceeding instruments", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("010", 10), field("500", 5), field("520", 20)})
		So(err, ShouldBeNil)

		Convey("Then Tier 2 is left unset rather than negative", func() {
			So(tpl.Row600, ShouldBeNil)
			So(*tpl.Row700, ShouldEqual, 10.0)
		})
	})
}

func TestDerive_NothingReported(t *testing.T) {
	Convey("Given only zero components", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("010", 0), field("030", 0)})
		So(err, ShouldBeNil)

		Convey("Then no aggregate is forced to zero", func() {
			So(tpl.Row100, ShouldBeNil)
			So(tpl.Row200, ShouldBeNil)
			So(tpl.Row400, ShouldBeNil)
			So(tpl.Row600, ShouldBeNil)
			So(tpl.Row700, ShouldBeNil)
		})
	})

	Convey("Given no fields at all", t, func() {
		tpl, err := template.Derive(template.OwnFunds, nil)
		So(err, ShouldBeNil)

		Convey("Then every row is unset", func() {
			for _, r := range tpl.Rows() {
				So(r.Value, ShouldBeNil)
			}
		})
	})
}

func TestDerive_DirectOverrides(t *testing.T) {
	Convey("Given a directly supplied CET1 total alongside components", t, func() {
		fields := []model.FieldMapping{field("010", 1000), field("030", 500), field("100", 42), field("700", 7)}

		tpl, err := template.Derive(template.OwnFunds, fields)
		So(err, ShouldBeNil)

		Convey("Then the supplied aggregates survive derivation", func() {
			So(*tpl.Row100, ShouldEqual, 42.0)
			So(*tpl.Row700, ShouldEqual, 7.0)
		})

		Convey("And dependants are derived from the supplied value", func() {
			So(*tpl.Row200, ShouldEqual, 42.0)
			So(*tpl.Row400, ShouldEqual, 42.0)
		})
	})

	Convey("Given the same component reported twice", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("010", 100), field("010", 300)})
		So(err, ShouldBeNil)

		Convey("Then the later value feeds the aggregate", func() {
			So(*tpl.Row010, ShouldEqual, 300.0)
			So(*tpl.Row100, ShouldEqual, 300.0)
		})
	})

	Convey("Given random component values with a supplied aggregate", t, func() {
		rng := rand.New(rand.NewSource(11))

		Convey("Then the supplied aggregate is never overwritten", func() {
			for i := 0; i < 200; i++ {
				want := float64(rng.Intn(1_000_000))
				fields := []model.FieldMapping{
					field("010", float64(rng.Intn(1_000_000))),
					field("400", want),
					field("300", float64(rng.Intn(1_000_000))),
				}
				tpl, err := template.Derive(template.OwnFunds, fields)
				So(err, ShouldBeNil)
				So(*tpl.Row400, ShouldEqual, want)
			}
		})
	})
}

func TestDerive_AggregateCorrectness(t *testing.T) {
	Convey("Given randomized component inputs", t, func() {
		rng := rand.New(rand.NewSource(42))

		Convey("Then every aggregate equals the combination of its dependencies", func() {
			for i := 0; i < 500; i++ {
				var fields []model.FieldMapping
				var cet1 float64
				for _, code := range template.CET1Components() {
					v := float64(rng.Intn(10_000_000) + 1_000_000)
					cet1 += v
					fields = append(fields, field(code, v))
				}
				ded := float64(rng.Intn(1_000_000))
				at1, at1Prem, at1Ded := float64(rng.Intn(500_000)), float64(rng.Intn(100_000)), float64(rng.Intn(50_000))
				t2 := float64(rng.Intn(2_000_000) + 1)
				fields = append(fields,
					field("080", ded),
					field("300", at1), field("310", at1Prem), field("320", at1Ded),
					field("500", t2),
				)

				tpl, err := template.Derive(template.OwnFunds, fields)
				So(err, ShouldBeNil)
				So(*tpl.Row100, ShouldEqual, cet1)
				So(*tpl.Row200, ShouldEqual, cet1-ded)
				netAT1 := at1 + at1Prem - at1Ded
				So(*tpl.Row400, ShouldEqual, cet1-ded+netAT1)
				So(*tpl.Row600, ShouldEqual, t2)
				So(*tpl.Row700, ShouldEqual, cet1-ded+netAT1+t2)
			}
		})
	})
}

func TestDerive_Idempotence(t *testing.T) {
	Convey("Given a derived template", t, func() {
		first, err := template.Derive(template.OwnFunds, []model.FieldMapping{
			field("010", 1_000_000_000),
			field("030", 200_000_000.55),
			field("090", 12_345.67),
			field("300", 50_000_000),
			field("500", 100_000_000),
			{Row: "520", Value: model.Amount(-3.3), Currency: "EUR"},
		})
		So(err, ShouldBeNil)

		Convey("When its own rows are fed back as direct fields", func() {
			second, err := template.Derive(template.OwnFunds, first.Fields())
			So(err, ShouldBeNil)

			Convey("Then the result is identical", func() {
				So(cmp.Diff(first, second), ShouldBeEmpty)
			})
		})
	})
}

func TestDerive_Inputs(t *testing.T) {
	Convey("Given an unknown template type", t, func() {
		tpl, err := template.Derive("C99", []model.FieldMapping{field("010", 1)})

		Convey("Then derivation fails with an unsupported type error", func() {
			So(tpl, ShouldBeNil)
			So(errors.Is(err, template.ErrUnsupportedTemplateType), ShouldBeTrue)
		})
	})

	Convey("Given rows outside the template", t, func() {
		fields := []model.FieldMapping{field("010", 10), field("999", 5), field("row_030", 7)}
		tpl, err := template.Derive(template.OwnFunds, fields)

		Convey("Then they are ignored without error", func() {
			So(err, ShouldBeNil)
			So(*tpl.Row100, ShouldEqual, 10.0)
			So(template.Unmapped(fields), ShouldResemble, []string{"999", "row_030"})
		})
	})

	Convey("Given unpadded row identifiers", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("10", 10), field("95", 4)})
		So(err, ShouldBeNil)

		Convey("Then they address the zero-padded rows", func() {
			So(*tpl.Row010, ShouldEqual, 10.0)
			So(*tpl.Row095, ShouldEqual, 4.0)
			So(*tpl.Row200, ShouldEqual, 6.0)
		})
	})

	Convey("Given currencies on several fields", t, func() {
		fields := []model.FieldMapping{
			{Row: "010", Value: model.Amount(1), Currency: "EUR"},
			{Row: "030", Value: model.Amount(1), Currency: "USD"},
			{Row: "040", Value: model.Amount(1)},
			{Row: "999", Value: model.Amount(1), Currency: "CHF"},
		}
		tpl, err := template.Derive(template.OwnFunds, fields)
		So(err, ShouldBeNil)

		Convey("Then the last specified currency wins, even on an unknown row", func() {
			So(tpl.Currency, ShouldEqual, "CHF")
		})
	})

	Convey("Given a non-finite amount", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("010", 5), field("020", math.NaN())})
		So(err, ShouldBeNil)

		Convey("Then the row is left unset", func() {
			So(tpl.Row020, ShouldBeNil)
			So(*tpl.Row100, ShouldEqual, 5.0)
		})
	})

	Convey("Given a field with no value", t, func() {
		tpl, err := template.Derive(template.OwnFunds, []model.FieldMapping{field("010", 5), {Row: "010"}})
		So(err, ShouldBeNil)

		Convey("Then it clears the row like any other direct assignment", func() {
			So(tpl.Row010, ShouldBeNil)
			So(tpl.Row100, ShouldBeNil)
		})
	})
}
