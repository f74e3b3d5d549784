package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/zyalhor1961/corematch-web-sub006/internal/tax/domain"
	"go.uber.org/fx"
)

type ResolverParams struct {
	fx.In

	Repository taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p ResolverParams) taxdomain.TaxResolver {
	return &resolver{repo: p.Repository}
}

// ResolveDefault returns the organization's first enabled VAT definition,
// used when a line carries neither a code nor an explicit rate.
func (r *resolver) ResolveDefault(ctx context.Context, orgID snowflake.ID) (*taxdomain.TaxDefinition, error) {
	def, err := r.repo.GetActiveTaxDefinition(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if def == nil || def.Rate == nil || *def.Rate <= 0 {
		return nil, nil
	}
	return def, nil
}

func (r *resolver) ResolveByCode(ctx context.Context, orgID snowflake.ID, code string) (*taxdomain.TaxDefinition, error) {
	return r.repo.FindEnabledByCode(ctx, orgID, code)
}

// TaxFor computes the VAT portion of amount at the given fractional rate.
// Exclusive mode treats amount as net, inclusive mode as gross. The result
// is rounded to 2 decimal places; rounding happens only here so line math
// stays exact until storage.
func TaxFor(amount decimal.Decimal, rate float64, mode taxdomain.TaxMode) decimal.Decimal {
	if rate <= 0 || amount.Sign() <= 0 {
		return decimal.Zero
	}
	r := decimal.NewFromFloat(rate)
	if mode == taxdomain.TaxModeInclusive {
		return amount.Mul(r).Div(decimal.NewFromInt(1).Add(r)).Round(2)
	}
	return amount.Mul(r).Round(2)
}
