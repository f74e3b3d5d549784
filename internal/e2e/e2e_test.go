package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/internal/account"
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert"
	"github.com/zyalhor1961/corematch-web-sub006/internal/apikey"
	"github.com/zyalhor1961/corematch-web-sub006/internal/audit"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth"
	authlocal "github.com/zyalhor1961/corematch-web-sub006/internal/auth/local"
	authoauth "github.com/zyalhor1961/corematch-web-sub006/internal/auth/oauth"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/session"
	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
	"github.com/zyalhor1961/corematch-web-sub006/internal/bi"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal"
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
	"github.com/zyalhor1961/corematch-web-sub006/internal/migration"
	"github.com/zyalhor1961/corematch-web-sub006/internal/observability"
	"github.com/zyalhor1961/corematch-web-sub006/internal/organization"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/product"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers"
	"github.com/zyalhor1961/corematch-web-sub006/internal/quote"
	"github.com/zyalhor1961/corematch-web-sub006/internal/ratelimit"
	"github.com/zyalhor1961/corematch-web-sub006/internal/reference"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening"
	"github.com/zyalhor1961/corematch-web-sub006/internal/seed"
	"github.com/zyalhor1961/corematch-web-sub006/internal/server"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/internal/tax"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@corematch.local"
	adminPassword = "admin"
)

type testEnv struct {
	app      *fx.App
	server   *server.Server
	engine   *gin.Engine
	db       *gorm.DB
	pipeline *pipeline.Processor
	baseURL  string
	httpSrv  *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		// The suite needs a reachable postgres; without one there is
		// nothing meaningful to exercise.
		fmt.Fprintln(os.Stderr, "skipping end-to-end suite:", err)
		os.Exit(0)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_BootstrapSeedsDefaults(t *testing.T) {
	resetDatabase(t, env.db)

	org := struct {
		ID        int64
		Slug      string
		IsDefault bool
	}{}
	if err := env.db.Raw(
		`SELECT id, slug, is_default FROM organizations WHERE slug = ?`, "main",
	).Scan(&org).Error; err != nil {
		t.Fatalf("query default org: %v", err)
	}
	if org.ID == 0 || !org.IsDefault {
		t.Fatalf("default org not seeded")
	}

	var userID int64
	if err := env.db.Raw(
		`SELECT id FROM users WHERE email = ?`, adminEmail,
	).Scan(&userID).Error; err != nil {
		t.Fatalf("query admin user: %v", err)
	}
	if userID == 0 {
		t.Fatalf("default admin not seeded")
	}

	if n := countRows(t, env.db, "accounts", "org_id = ?", org.ID); n < 9 {
		t.Fatalf("expected seeded chart of accounts, got %d rows", n)
	}
	if n := countRows(t, env.db, "tax_definitions", "org_id = ?", org.ID); n != 5 {
		t.Fatalf("expected 5 seeded tax definitions, got %d", n)
	}
	if n := countRows(t, env.db, "hs_codes", "org_id = 0"); n == 0 {
		t.Fatalf("expected shared hs code seed rows")
	}
}

func TestE2E_LoginAndOrgProvisioning(t *testing.T) {
	resetDatabase(t, env.db)

	client, _ := loginAdmin(t)

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/auth/user/orgs", map[string]any{
		"name":         "E2E Filiale",
		"country_code": "FR",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create org failed: %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	decodeData(t, body, &created)
	if created.ID == "" {
		t.Fatalf("expected org id in response")
	}

	// A fresh org gets its own accounting working set.
	orgID := mustParseID(t, created.ID)
	if n := countRows(t, env.db, "accounts", "org_id = ?", int64(orgID)); n < 9 {
		t.Fatalf("expected chart of accounts for new org, got %d rows", n)
	}
	if n := countRows(t, env.db, "invoice_sequences", "org_id = ?", int64(orgID)); n != 1 {
		t.Fatalf("expected invoice sequence for new org")
	}

	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/auth/user/orgs", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list orgs failed: %d: %s", resp.StatusCode, string(body))
	}
	var orgs []struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	decodeData(t, body, &orgs)
	if len(orgs) < 2 {
		t.Fatalf("expected at least two orgs after creation, got %d", len(orgs))
	}
}

func TestE2E_APIKeyAuthentication(t *testing.T) {
	resetDatabase(t, env.db)

	client, orgID := loginAdmin(t)
	apiKey := createAPIKey(t, client, orgID, "invoice:admin")

	productReq := map[string]any{
		"sku":        "E2E-SKU-1",
		"name":       "Clavier mécanique",
		"unit_price": "89.90",
		"currency":   "EUR",
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	resp, body := doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/api/erp/products", productReq, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product with api key failed: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/api/erp/products", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list products with api key failed: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/api/erp/products", nil, map[string]string{
		"Authorization": "Bearer invalid",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid api key, got %d: %s", resp.StatusCode, string(body))
	}

	// Scoped keys cannot reach outside their grant.
	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/api/idp/documents", nil, headers)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 outside key scope, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_DocumentPipeline(t *testing.T) {
	resetDatabase(t, env.db)

	client, orgID := loginAdmin(t)
	docID := uploadDocument(t, client, orgID, "facture-acme.pdf")

	processed, err := env.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed document, got %d", processed)
	}

	headers := map[string]string{server.HeaderOrg: orgID}
	resp, body := doJSON(t, client, http.MethodGet, env.baseURL+"/api/idp/documents/"+docID, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get document failed: %d: %s", resp.StatusCode, string(body))
	}

	var detail struct {
		Status      string  `json:"status"`
		VendorName  *string `json:"vendor_name"`
		TotalAmount *string `json:"total_amount"`
		Fields      []struct {
			FieldName string `json:"field_name"`
		} `json:"extracted_fields"`
	}
	decodeData(t, body, &detail)
	if detail.Status != "processed" {
		t.Fatalf("expected processed document, got %s", detail.Status)
	}
	if detail.VendorName == nil || *detail.VendorName != "ACME SARL" {
		t.Fatalf("expected normalized vendor, got %v", detail.VendorName)
	}
	if detail.TotalAmount == nil || !decimal.RequireFromString(*detail.TotalAmount).Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total 150, got %v", detail.TotalAmount)
	}
	if len(detail.Fields) == 0 {
		t.Fatalf("expected extracted fields on detail")
	}
}

func TestE2E_InvoiceLifecycle(t *testing.T) {
	resetDatabase(t, env.db)

	client, orgID := loginAdmin(t)
	headers := map[string]string{server.HeaderOrg: orgID}

	createReq := map[string]any{
		"direction":     "sale",
		"customer_name": "Dupont SAS",
		"currency":      "EUR",
		"issue_date":    "2025-07-31",
		"due_date":      "2025-08-30",
		"lines": []map[string]any{
			{"description": "Prestation de conseil", "quantity": 2, "unit_price": "500.00", "vat_rate": 0.20},
		},
	}
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/erp/invoices", createReq, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invoice failed: %d: %s", resp.StatusCode, string(body))
	}

	var draft struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, body, &draft)
	if draft.Status != "draft" {
		t.Fatalf("expected draft invoice, got %s", draft.Status)
	}

	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/erp/invoices/"+draft.ID+"/open", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open invoice failed: %d: %s", resp.StatusCode, string(body))
	}

	var opened struct {
		Status         string  `json:"status"`
		InvoiceNumber  string  `json:"invoice_number"`
		JournalEntryID *string `json:"journal_entry_id"`
		TotalAmount    string  `json:"total_amount"`
	}
	decodeData(t, body, &opened)
	if opened.Status != "open" {
		t.Fatalf("expected open invoice, got %s", opened.Status)
	}
	if opened.InvoiceNumber == "" {
		t.Fatalf("expected assigned invoice number")
	}
	if !decimal.RequireFromString(opened.TotalAmount).Equal(decimal.RequireFromString("1200")) {
		t.Fatalf("expected total 1200.00, got %s", opened.TotalAmount)
	}
	if opened.JournalEntryID == nil {
		t.Fatalf("expected posted journal entry")
	}

	entryID := mustParseID(t, *opened.JournalEntryID)
	sums := struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}{}
	if err := env.db.Raw(
		`SELECT COALESCE(SUM(debit), 0) AS debit, COALESCE(SUM(credit), 0) AS credit
		 FROM journal_lines WHERE entry_id = ?`, int64(entryID),
	).Scan(&sums).Error; err != nil {
		t.Fatalf("query journal lines: %v", err)
	}
	if !sums.Debit.Equal(sums.Credit) || sums.Debit.IsZero() {
		t.Fatalf("expected balanced non-empty journal entry, debit=%s credit=%s", sums.Debit, sums.Credit)
	}

	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/erp/invoices/"+draft.ID+"/pay", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay invoice failed: %d: %s", resp.StatusCode, string(body))
	}
	var paid struct {
		Status string `json:"status"`
	}
	decodeData(t, body, &paid)
	if paid.Status != "paid" {
		t.Fatalf("expected paid invoice, got %s", paid.Status)
	}

	if n := countRows(t, env.db, "audit_logs", "action = ?", "invoice.opened"); n == 0 {
		t.Fatalf("expected audit trail for invoice opening")
	}
}

func TestE2E_HSCodeSuggestSeedLookup(t *testing.T) {
	resetDatabase(t, env.db)

	client, orgID := loginAdmin(t)
	headers := map[string]string{server.HeaderOrg: orgID}

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/idp/hscodes/suggest", map[string]any{
		"description": "Ordinateur portable 15 pouces",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("suggest failed: %d: %s", resp.StatusCode, string(body))
	}

	var suggestion struct {
		Code   string `json:"code"`
		Source string `json:"source"`
	}
	decodeData(t, body, &suggestion)
	if suggestion.Code != "84713000" {
		t.Fatalf("expected laptop nomenclature code, got %s", suggestion.Code)
	}
	if suggestion.Source != "seed" {
		t.Fatalf("expected seed-sourced suggestion, got %s", suggestion.Source)
	}
}

func TestE2E_BIOverview(t *testing.T) {
	resetDatabase(t, env.db)

	client, orgID := loginAdmin(t)
	uploadDocument(t, client, orgID, "facture-bi.pdf")
	if _, err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("pipeline run: %v", err)
	}

	headers := map[string]string{server.HeaderOrg: orgID}
	resp, body := doJSON(t, client, http.MethodGet, env.baseURL+"/api/bi/overview", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bi overview failed: %d: %s", resp.StatusCode, string(body))
	}

	var overview struct {
		Documents struct {
			Total    int64            `json:"total"`
			ByStatus map[string]int64 `json:"by_status"`
		} `json:"documents"`
	}
	decodeData(t, body, &overview)
	if overview.Documents.Total == 0 {
		t.Fatalf("expected documents in overview")
	}
	if overview.Documents.ByStatus["processed"] == 0 {
		t.Fatalf("expected processed documents in overview, got %v", overview.Documents.ByStatus)
	}
}

func TestE2E_TestCleanupEndpoint(t *testing.T) {
	resetDatabase(t, env.db)

	client, _ := loginAdmin(t)
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/auth/user/orgs", map[string]any{
		"name":         "E2E Wipe Target",
		"country_code": "FR",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create org failed: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/api/test/cleanup", map[string]any{
		"prefix": "E2E Wipe",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup failed: %d: %s", resp.StatusCode, string(body))
	}

	if n := countRows(t, env.db, "organizations", "name LIKE ?", "E2E Wipe%"); n != 0 {
		t.Fatalf("expected cleanup to remove prefixed orgs, %d left", n)
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv    *server.Server
		engine *gin.Engine
		dbConn *gorm.DB
		cfg    config.Config
		proc   *pipeline.Processor
	)

	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		migration.Module,

		session.Module,
		auth.Module,
		authlocal.Module,
		authorization.Module,
		audit.Module,
		apikey.Module,
		organization.Module,
		invitation.Module,
		reference.Module,
		tax.Module,
		product.Module,
		storage.Module,
		extraction.Module,
		liveevents.Module,
		document.Module,
		account.Module,
		journal.Module,
		invoice.Module,
		lead.Module,
		quote.Module,
		screening.Module,
		hscode.Module,
		deb.Module,
		bi.Module,
		alert.Module,
		ratelimit.Module,
		providers.Module,
		pipeline.Module,

		fx.Provide(telemetry.NewMetrics),
		fx.Provide(authoauth.NewService),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &engine, &dbConn, &cfg, &proc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
		_ = app.Stop(context.Background())
		return nil, fmt.Errorf("suite needs postgres, configured db type is %q", cfg.DBType)
	}

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		app:      app,
		server:   srv,
		engine:   engine,
		db:       dbConn,
		pipeline: proc,
		baseURL:  httpSrv.URL,
		httpSrv:  httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("APP_MODE", "oss")
	setEnvIfEmpty("BOOTSTRAP_DEFAULT_ORG_AND_USER", "true")
	setEnvIfEmpty("AUTH_COOKIE_SECURE", "false")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("OTEL_ENABLED", "false")
	setEnvIfEmpty("CLOUD_METRICS_ENABLED", "false")
	setEnvIfEmpty("ANALYSIS_PROVIDER", "fake")
	setEnvIfEmpty("RATE_LIMIT_ENABLED", "false")

	if strings.TrimSpace(os.Getenv("STORAGE_LOCAL_DIR")) == "" {
		dir, err := os.MkdirTemp("", "corematch-e2e-*")
		if err == nil {
			_ = os.Setenv("STORAGE_LOCAL_DIR", dir)
		}
	}
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := truncateAllTables(dbConn); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	if err := seed.EnsureMainOrgAndAdmin(dbConn); err != nil {
		t.Fatalf("seed default org and admin: %v", err)
	}
}

func truncateAllTables(dbConn *gorm.DB) error {
	type tableRow struct {
		Name string `gorm:"column:tablename"`
	}
	var rows []tableRow
	if err := dbConn.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&rows).Error; err != nil {
		return err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		tables = append(tables, `"`+row.Name+`"`)
	}
	if len(tables) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	return dbConn.Exec(stmt).Error
}

func loginAdmin(t *testing.T) (*http.Client, string) {
	t.Helper()
	client := newHTTPClient()

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/auth/login", map[string]any{
		"email":    adminEmail,
		"password": adminPassword,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d: %s", resp.StatusCode, string(body))
	}

	baseURL, err := url.Parse(env.baseURL)
	if err == nil {
		found := false
		for _, cookie := range client.Jar.Cookies(baseURL) {
			if cookie.Name == session.DefaultCookieName && strings.TrimSpace(cookie.Value) != "" {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected session cookie after login")
		}
	}

	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/auth/user/orgs", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list orgs failed: %d: %s", resp.StatusCode, string(body))
	}

	var orgs []struct {
		ID string `json:"id"`
	}
	decodeData(t, body, &orgs)
	if len(orgs) == 0 {
		t.Fatalf("no orgs returned after login")
	}
	return client, strings.TrimSpace(orgs[0].ID)
}

func createAPIKey(t *testing.T, client *http.Client, orgID string, scopes ...string) string {
	t.Helper()
	headers := map[string]string{server.HeaderOrg: orgID}
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/admin/api/api-keys", map[string]any{
		"name":   "E2E Key",
		"scopes": scopes,
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create api key failed: %d: %s", resp.StatusCode, string(body))
	}

	var secret struct {
		APIKey string `json:"api_key"`
	}
	decodeData(t, body, &secret)
	if strings.TrimSpace(secret.APIKey) == "" {
		t.Fatalf("expected api key secret in create response")
	}
	return secret.APIKey
}

func uploadDocument(t *testing.T, client *http.Client, orgID, filename string) string {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 facture de test")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.WriteField("doc_type", "invoice"); err != nil {
		t.Fatalf("write doc_type field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/api/idp/documents", &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(server.HeaderOrg, orgID)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read upload response: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload failed: %d: %s", resp.StatusCode, string(body))
	}

	var doc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, body, &doc)
	if doc.ID == "" {
		t.Fatalf("expected document id in upload response")
	}
	if doc.Status != "uploaded" {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	return doc.ID
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func mustParseID(t *testing.T, value string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		t.Fatalf("invalid snowflake id: %s", value)
	}
	return parsed
}

// decodeData unwraps the {"success":true,"data":...} envelope.
func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v: %s", err, string(body))
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope: %s", string(body))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(envelope.Data))
	}
}

func doJSON(t *testing.T, client *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 15 * time.Second,
		Jar:     jar,
	}
}
