package domain

import "context"

type Repository interface {
	ListCountries(ctx context.Context) ([]Country, error)
	FindCountry(ctx context.Context, code string) (*Country, error)
	ListTimezonesByCountry(ctx context.Context, countryCode string) ([]Timezone, error)
	ListCurrencies(ctx context.Context) ([]Currency, error)
	FindCurrency(ctx context.Context, code string) (*Currency, error)
}
