// Package tax computes the monetary breakdown of an order snapshot: the
// discounted taxable base, per-component GST breakup, service charge,
// round-off and grand total. It is pure; callers persist the result.
package tax

import (
	"sort"

	"github.com/shopspring/decimal"
)

// IGSTCode replaces the split components on interstate supply.
const IGSTCode = "IGST"

// Component is one tax component recorded on an order line, e.g. CGST 2.5.
type Component struct {
	Code string          `json:"code"`
	Rate decimal.Decimal `json:"rate"`
}

// Line is one active (non-cancelled) order line.
type Line struct {
	LineTotal  decimal.Decimal
	Components []Component
}

type ChargeMode string

const (
	ChargePercent ChargeMode = "PERCENT"
	ChargeFlat    ChargeMode = "FLAT"
)

// ServiceChargeRule is the outlet's dine-in service charge configuration.
// Whether and how the charge itself is taxed varies per outlet, so the rule
// carries its own optional component set.
type ServiceChargeRule struct {
	Mode       ChargeMode
	Value      decimal.Decimal
	Taxable    bool
	Components []Component
}

type Input struct {
	Lines           []Line
	DiscountTotal   decimal.Decimal
	ServiceCharge   *ServiceChargeRule
	PackagingCharge decimal.Decimal
	DeliveryCharge  decimal.Decimal
	Interstate      bool
}

// ComponentTax is one entry of the tax breakup.
type ComponentTax struct {
	Rate          decimal.Decimal `json:"rate"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

type Result struct {
	Subtotal      decimal.Decimal
	TaxableAmount decimal.Decimal
	Breakup       map[string]ComponentTax
	TotalTax      decimal.Decimal
	ServiceCharge decimal.Decimal
	PreRoundTotal decimal.Decimal
	GrandTotal    decimal.Decimal
	RoundOff      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Calculate computes the full breakdown. Tax is always taken on each line's
// share of the discounted taxable amount, never on the gross subtotal. Lines
// with no usable components contribute zero tax.
func Calculate(in Input) Result {
	subtotal := decimal.Zero
	for _, line := range in.Lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	subtotal = round2(subtotal)

	taxable := subtotal.Sub(in.DiscountTotal)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	taxable = round2(taxable)

	breakup := make(map[string]ComponentTax)

	for _, line := range in.Lines {
		// The line's share of the discounted base.
		share := decimal.Zero
		if subtotal.IsPositive() {
			share = line.LineTotal.Mul(taxable).Div(subtotal)
		}
		share = round2(share)
		applyComponents(breakup, effectiveComponents(line.Components, in.Interstate), share)
	}

	serviceCharge := decimal.Zero
	if in.ServiceCharge != nil {
		switch in.ServiceCharge.Mode {
		case ChargePercent:
			serviceCharge = round2(taxable.Mul(in.ServiceCharge.Value).Div(hundred))
		case ChargeFlat:
			serviceCharge = round2(in.ServiceCharge.Value)
		}
		if in.ServiceCharge.Taxable && serviceCharge.IsPositive() {
			applyComponents(breakup, effectiveComponents(in.ServiceCharge.Components, in.Interstate), serviceCharge)
		}
	}

	totalTax := decimal.Zero
	for _, ct := range breakup {
		totalTax = totalTax.Add(ct.TaxAmount)
	}
	totalTax = round2(totalTax)

	preRound := taxable.
		Add(totalTax).
		Add(serviceCharge).
		Add(round2(in.PackagingCharge)).
		Add(round2(in.DeliveryCharge))

	grand := preRound.Round(0)
	roundOff := grand.Sub(preRound)

	return Result{
		Subtotal:      subtotal,
		TaxableAmount: taxable,
		Breakup:       breakup,
		TotalTax:      totalTax,
		ServiceCharge: serviceCharge,
		PreRoundTotal: preRound,
		GrandTotal:    grand,
		RoundOff:      roundOff,
	}
}

// effectiveComponents collapses split components into a single IGST line at
// the summed rate on interstate supply.
func effectiveComponents(components []Component, interstate bool) []Component {
	valid := components[:0:0]
	for _, c := range components {
		if c.Code == "" || c.Rate.IsNegative() {
			continue
		}
		valid = append(valid, c)
	}
	if !interstate || len(valid) == 0 {
		return valid
	}
	total := decimal.Zero
	for _, c := range valid {
		total = total.Add(c.Rate)
	}
	return []Component{{Code: IGSTCode, Rate: total}}
}

func applyComponents(breakup map[string]ComponentTax, components []Component, base decimal.Decimal) {
	for _, c := range components {
		entry := breakup[c.Code]
		entry.Rate = c.Rate
		entry.TaxableAmount = round2(entry.TaxableAmount.Add(base))
		entry.TaxAmount = round2(entry.TaxAmount.Add(round2(base.Mul(c.Rate).Div(hundred))))
		breakup[c.Code] = entry
	}
}

// ComponentCodes returns the breakup keys in stable order, for printing.
func (r Result) ComponentCodes() []string {
	codes := make([]string, 0, len(r.Breakup))
	for code := range r.Breakup {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
