package domain

import "time"

// Country carries the EU membership flag the DEB module checks when
// validating declaration lines.
type Country struct {
	Code         string    `json:"code" gorm:"type:text;primaryKey;column:code"`
	Name         string    `json:"name" gorm:"type:text;not null"`
	EUMember     bool      `json:"eu_member" gorm:"column:eu_member;not null;default:false"`
	CurrencyCode *string   `json:"currency_code,omitempty" gorm:"column:currency_code;type:text"`
	CreatedAt    time.Time `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Country) TableName() string { return "countries" }

type Timezone struct {
	Name string `json:"name" gorm:"type:text;primaryKey;column:timezone"`
}

type CountryTimezone struct {
	CountryCode string `json:"country_code" gorm:"type:text;primaryKey;column:country_code"`
	Timezone    string `json:"timezone" gorm:"type:text;primaryKey;column:timezone"`
}

func (CountryTimezone) TableName() string { return "country_timezones" }

type Currency struct {
	Code          string `json:"code" gorm:"type:text;primaryKey;column:code"`
	Name          string `json:"name" gorm:"type:text;not null"`
	Symbol        string `json:"symbol" gorm:"type:text;not null;default:''"`
	DecimalDigits int    `json:"decimal_digits" gorm:"column:decimal_digits;not null;default:2"`
}

func (Currency) TableName() string { return "currencies" }
