package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, org_id, code, name, account_type, currency, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.OrgID,
		account.Code,
		account.Name,
		account.AccountType,
		account.Currency,
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE org_id = ? AND code = ?`,
		orgID,
		code,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindActiveByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Where("id IN ?", ids).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter) ([]domain.Account, error) {
	var accounts []domain.Account
	stmt := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("org_id = ?", orgID)
	if filter.AccountType != "" {
		stmt = stmt.Where("account_type = ?", filter.AccountType)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}
	err := stmt.Order("code asc").Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET name = ?, is_active = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		account.Name,
		account.IsActive,
		account.UpdatedAt,
		account.OrgID,
		account.ID,
	).Error
}
