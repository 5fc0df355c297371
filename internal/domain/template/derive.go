package template

import (
	"fmt"

	"github.com/okian/corep/internal/domain/model"
	"github.com/shopspring/decimal"
)

var (
	cet1Components  = []string{"010", "020", "030", "040", "050", "060", "070"}
	cet1Adjustments = []string{"080", "090", "095"}
)

// Derive builds a template of templateType from extracted fields.
//
// Rows named by a field are set directly; the last field naming a row wins
// and the last field carrying a currency sets the template currency. Fields
// whose row is not part of the template are ignored. Aggregate rows that
// were not supplied are then derived in dependency order:
//
//	row_100 = sum(010..070)                       if any component > 0
//	row_200 = row_100 - |sum(080, 090, 095)|      if row_100 is set
//	row_400 = row_200 + (300 + 310 - |320|)       if either term > 0
//	row_600 = 500 + 510 - |520|                   if > 0
//	row_700 = row_400 + row_600                   if either term > 0
//
// A directly supplied aggregate is never overwritten.
func Derive(templateType string, fields []model.FieldMapping) (*Template, error) {
	if !Supported(templateType) {
		return nil, fmt.Errorf("template.derive %q: %w", templateType, ErrUnsupportedTemplateType)
	}

	t := &Template{Currency: model.DefaultCurrency}
	for _, f := range fields {
		t.set(CanonicalRow(f.Row), f.Value)
		if f.Currency != "" {
			t.Currency = f.Currency
		}
	}

	t.deriveCET1BeforeAdjustments()
	t.deriveCET1AfterAdjustments()
	t.deriveTier1()
	t.deriveTier2()
	t.deriveTotal()
	return t, nil
}

// Unmapped returns the row identifiers in fields that the template does not
// define, in input order.
func Unmapped(fields []model.FieldMapping) []string {
	var out []string
	for _, f := range fields {
		if _, ok := byCode[CanonicalRow(f.Row)]; !ok {
			out = append(out, f.Row)
		}
	}
	return out
}

func (t *Template) deriveCET1BeforeAdjustments() {
	if t.Row100 != nil {
		return
	}
	anyPositive := false
	for _, code := range cet1Components {
		if Decimal(t.Value(code)).IsPositive() {
			anyPositive = true
			break
		}
	}
	if anyPositive {
		t.Row100 = amountOf(t.sum(cet1Components...))
	}
}

func (t *Template) deriveCET1AfterAdjustments() {
	if t.Row200 != nil || t.Row100 == nil {
		return
	}
	deductions := t.sum(cet1Adjustments...).Abs()
	t.Row200 = amountOf(Decimal(t.Row100).Sub(deductions))
}

func (t *Template) deriveTier1() {
	if t.Row400 != nil {
		return
	}
	cet1 := Decimal(t.Row200)
	at1 := t.NetAT1()
	if cet1.IsPositive() || at1.IsPositive() {
		t.Row400 = amountOf(cet1.Add(at1))
	}
}

func (t *Template) deriveTier2() {
	if t.Row600 != nil {
		return
	}
	t2 := Decimal(t.Row500).Add(Decimal(t.Row510)).Sub(Decimal(t.Row520).Abs())
	if t2.IsPositive() {
		t.Row600 = amountOf(t2)
	}
}

func (t *Template) deriveTotal() {
	if t.Row700 != nil {
		return
	}
	t1, t2 := Decimal(t.Row400), Decimal(t.Row600)
	if t1.IsPositive() || t2.IsPositive() {
		t.Row700 = amountOf(t1.Add(t2))
	}
}

// NetAT1 is AT1 instruments plus premium less the magnitude of AT1 deductions.
func (t *Template) NetAT1() decimal.Decimal {
	return Decimal(t.Row300).Add(Decimal(t.Row310)).Sub(Decimal(t.Row320).Abs())
}

// CET1ComponentSum is the sum of the seven CET1 component rows.
func (t *Template) CET1ComponentSum() decimal.Decimal {
	return t.sum(cet1Components...)
}

// CET1Components returns the codes of the seven CET1 component rows.
func CET1Components() []string {
	return append([]string(nil), cet1Components...)
}

func (t *Template) sum(codes ...string) decimal.Decimal {
	total := decimal.Zero
	for _, code := range codes {
		total = total.Add(Decimal(t.Value(code)))
	}
	return total
}
