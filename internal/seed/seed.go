package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/password"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName       = "Main"
	defaultOrgSlug       = "main"
	defaultAdminEmail    = "admin@corematch.local"
	defaultAdminPassword = "admin"
)

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, 0)
		if err != nil {
			return err
		}
		if err := EnsureOrgDefaults(ctx, tx, node, org.ID); err != nil {
			return err
		}
		return EnsureHSCodeSeed(ctx, tx, node)
	})
}

// EnsureMainOrgWithID seeds the default organization with a fixed ID, used
// when an install must match an externally assigned organization ID.
func EnsureMainOrgWithID(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if orgID == 0 {
		return EnsureMainOrg(db)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, snowflake.ID(orgID))
		if err != nil {
			return err
		}
		if err := EnsureOrgDefaults(ctx, tx, node, org.ID); err != nil {
			return err
		}
		return EnsureHSCodeSeed(ctx, tx, node)
	})
}

// EnsureMainOrgAndAdmin seeds the default organization and admin user for OSS mode.
func EnsureMainOrgAndAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, 0)
		if err != nil {
			return err
		}

		var user authdomain.User
		err = tx.WithContext(ctx).
			Where("username = ?", defaultAdminEmail).
			First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(defaultAdminPassword)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user = authdomain.User{
				ID:           node.Generate(),
				Username:     defaultAdminEmail,
				Email:        strings.ToLower(defaultAdminEmail),
				PasswordHash: &hashed,
				IsDefault:    true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
				return err
			}
		}

		var member organizationdomain.OrganizationMember
		err = tx.WithContext(ctx).
			Where("org_id = ? AND user_id = ?", org.ID, user.ID).
			First(&member).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			now := time.Now().UTC()
			member = organizationdomain.OrganizationMember{
				ID:        node.Generate(),
				OrgID:     org.ID,
				UserID:    user.ID,
				Role:      organizationdomain.RoleOwner,
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&member).Error; err != nil {
				return err
			}
		}

		if err := EnsureOrgDefaults(ctx, tx, node, org.ID); err != nil {
			return err
		}
		return EnsureHSCodeSeed(ctx, tx, node)
	})
}

// EnsureOrgDefaults provisions the per-org working set a fresh organization
// needs: number sequences, the French chart of accounts, and VAT definitions.
// It is idempotent and safe to run on every startup and org creation.
func EnsureOrgDefaults(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	if err := ensureSequence(ctx, tx, "invoice_sequences", orgID); err != nil {
		return err
	}
	if err := ensureSequence(ctx, tx, "quote_sequences", orgID); err != nil {
		return err
	}
	if err := ensureChartOfAccounts(ctx, tx, node, orgID); err != nil {
		return err
	}
	return ensureTaxDefinitions(ctx, tx, node, orgID)
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, forcedID snowflake.ID) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	id := forcedID
	if id == 0 {
		id = node.Generate()
	}
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:          id,
		Name:        defaultOrgName,
		Slug:        defaultOrgSlug,
		IsDefault:   true,
		CountryCode: "FR",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureSequence(ctx context.Context, tx *gorm.DB, table string, orgID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO `+table+` (org_id, next_number, updated_at)
		 VALUES (?, 1, ?)
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID,
		time.Now().UTC(),
	).Error
}

func ensureChartOfAccounts(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	type account struct {
		Code string
		Type string
		Name string
	}

	// Minimal French PCG subset covering purchase and sale postings.
	accounts := []account{
		{"401", "liability", "Fournisseurs"},
		{"411", "asset", "Clients"},
		{"44566", "asset", "TVA deductible"},
		{"44571", "liability", "TVA collectee"},
		{"512", "asset", "Banque"},
		{"606", "expense", "Achats non stockes"},
		{"607", "expense", "Achats de marchandises"},
		{"706", "revenue", "Prestations de services"},
		{"707", "revenue", "Ventes de marchandises"},
	}

	for _, a := range accounts {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO accounts (id, org_id, code, name, account_type, currency, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 'EUR', TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			 ON CONFLICT (org_id, code) DO NOTHING`,
			node.Generate(),
			orgID,
			a.Code,
			a.Name,
			a.Type,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureTaxDefinitions(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	type taxDef struct {
		Code string
		Name string
		Rate float64
	}

	defs := []taxDef{
		{"FR_VAT_STANDARD", "TVA taux normal", 0.2000},
		{"FR_VAT_INTERMEDIATE", "TVA taux intermediaire", 0.1000},
		{"FR_VAT_REDUCED", "TVA taux reduit", 0.0550},
		{"FR_VAT_SUPER_REDUCED", "TVA taux particulier", 0.0210},
		{"NO_TAX", "Exoneration de TVA", 0},
	}

	for _, d := range defs {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO tax_definitions (id, org_id, name, code, tax_mode, rate, is_enabled, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 'exclusive', ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			 ON CONFLICT (org_id, code) DO NOTHING`,
			node.Generate(),
			orgID,
			d.Name,
			d.Code,
			d.Rate,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// EnsureHSCodeSeed loads the shared combined nomenclature starter set
// (org 0, readable by every tenant). Idempotent; learned rows written by
// the suggestion service live per org alongside these.
func EnsureHSCodeSeed(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	type hsRow struct {
		Code        string
		Description string
		Keywords    string
	}

	rows := []hsRow{
		{"84713000", "Ordinateurs portables", "laptop, ordinateur portable, notebook, pc portable"},
		{"84717050", "Disques durs et SSD", "disque dur, ssd, stockage, hdd, nvme"},
		{"84716070", "Claviers et souris", "clavier, souris, keyboard, mouse"},
		{"85171300", "Smartphones", "smartphone, telephone mobile, iphone, android"},
		{"85285210", "Moniteurs pour ordinateurs", "ecran, moniteur, monitor, display"},
		{"84433100", "Imprimantes multifonctions", "imprimante, printer, scanner, copieur"},
		{"85044055", "Chargeurs et adaptateurs", "chargeur, adaptateur, alimentation, bloc secteur"},
		{"85183000", "Casques et micro-casques", "casque, ecouteurs, headset, micro"},
		{"94013100", "Sieges de bureau pivotants", "chaise de bureau, fauteuil, siege pivotant"},
		{"94032080", "Mobilier metallique de bureau", "armoire, etagere, rack, caisson"},
		{"49019900", "Livres et manuels", "livre, manuel, book, documentation"},
		{"39261000", "Fournitures de bureau en plastique", "classeur, trieur, fourniture bureau"},
	}

	for _, r := range rows {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO hs_codes (id, org_id, code, description, keywords, source, usage_count, created_at, updated_at)
			 VALUES (?, 0, ?, ?, ?, 'seed', 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			 ON CONFLICT (org_id, code) DO NOTHING`,
			node.Generate(),
			r.Code,
			r.Description,
			r.Keywords,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
