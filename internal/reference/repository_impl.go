package reference

import (
	"context"
	"strings"

	"github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListCountries(ctx context.Context) ([]domain.Country, error) {
	var countries []domain.Country
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name, eu_member, currency_code, created_at FROM countries ORDER BY name`).
		Scan(&countries).Error
	if err != nil {
		return nil, err
	}
	return countries, nil
}

func (r *repository) FindCountry(ctx context.Context, code string) (*domain.Country, error) {
	var country domain.Country
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name, eu_member, currency_code, created_at FROM countries WHERE code = ?`,
			strings.ToUpper(strings.TrimSpace(code))).
		Scan(&country).Error
	if err != nil {
		return nil, err
	}
	if country.Code == "" {
		return nil, nil
	}
	return &country, nil
}

func (r *repository) ListTimezonesByCountry(ctx context.Context, countryCode string) ([]domain.Timezone, error) {
	var timezones []domain.Timezone
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT timezone FROM country_timezones WHERE country_code = ? ORDER BY timezone`, countryCode).
		Scan(&timezones).Error
	if err != nil {
		return nil, err
	}
	return timezones, nil
}

func (r *repository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	var currencies []domain.Currency
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name, symbol, decimal_digits FROM currencies ORDER BY code`).
		Scan(&currencies).Error
	if err != nil {
		return nil, err
	}
	return currencies, nil
}

func (r *repository) FindCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	var currency domain.Currency
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name, symbol, decimal_digits FROM currencies WHERE code = ?`,
			strings.ToUpper(strings.TrimSpace(code))).
		Scan(&currency).Error
	if err != nil {
		return nil, err
	}
	if currency.Code == "" {
		return nil, nil
	}
	return &currency, nil
}
