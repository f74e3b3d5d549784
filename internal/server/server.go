package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zyalhor1961/corematch-web-sub006/internal/account"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/apikey"
	apikeydomain "github.com/zyalhor1961/corematch-web-sub006/internal/apikey/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/audit"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	authlocal "github.com/zyalhor1961/corematch-web-sub006/internal/auth/local"
	authoauth "github.com/zyalhor1961/corematch-web-sub006/internal/auth/oauth"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/session"
	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
	"github.com/zyalhor1961/corematch-web-sub006/internal/bi"
	bidomain "github.com/zyalhor1961/corematch-web-sub006/internal/bi/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb"
	debdomain "github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation"
	invitationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/invitation/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
	"github.com/zyalhor1961/corematch-web-sub006/internal/observability"
	obslogger "github.com/zyalhor1961/corematch-web-sub006/internal/observability/logger"
	obsmetrics "github.com/zyalhor1961/corematch-web-sub006/internal/observability/metrics"
	obstracing "github.com/zyalhor1961/corematch-web-sub006/internal/observability/tracing"
	"github.com/zyalhor1961/corematch-web-sub006/internal/organization"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/product"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers"
	"github.com/zyalhor1961/corematch-web-sub006/internal/quote"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/ratelimit"
	"github.com/zyalhor1961/corematch-web-sub006/internal/reference"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening"
	screeningdomain "github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/internal/tax"
	taxdomain "github.com/zyalhor1961/corematch-web-sub006/internal/tax/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module assembles the HTTP server together with every domain service
// it fronts.
var Module = fx.Module("http.server",
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
	fx.Provide(telemetry.NewMetrics),
	fx.Provide(authoauth.NewService),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Server carries every dependency the HTTP handlers need.
type Server struct {
	engine *gin.Engine
	log    *zap.Logger
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	sessions *session.Manager
	authsvc  authdomain.Service
	oauthsvc authoauth.Service

	apiKeySvc     apikeydomain.Service
	apiKeyLimiter *rateLimiter
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service

	organizationSvc organizationdomain.Service
	invitationSvc   invitationdomain.Service
	refrepo         referencedomain.Repository
	taxSvc          taxdomain.Service
	productSvc      productdomain.Service

	documentSvc  documentdomain.Service
	accountSvc   accountdomain.Service
	journalSvc   journaldomain.Service
	invoiceSvc   invoicedomain.Service
	leadSvc      leaddomain.Service
	quoteSvc     quotedomain.Service
	screeningSvc screeningdomain.Service
	hscodeSvc    hscodedomain.Service
	debSvc       debdomain.Service
	biSvc        bidomain.Service
	alertSvc     alertdomain.Service

	hub        *liveevents.Hub
	apiLimiter *ratelimit.APILimiter
}

type ServerParams struct {
	fx.In

	Engine *gin.Engine
	Log    *zap.Logger
	Cfg    config.Config
	DB     *gorm.DB
	GenID  *snowflake.Node

	Sessions *session.Manager
	AuthSvc  authdomain.Service
	OAuthSvc authoauth.Service

	APIKeySvc apikeydomain.Service
	AuthzSvc  authorization.Service
	AuditSvc  auditdomain.Service

	OrganizationSvc organizationdomain.Service
	InvitationSvc   invitationdomain.Service
	RefRepo         referencedomain.Repository
	TaxSvc          taxdomain.Service
	ProductSvc      productdomain.Service

	DocumentSvc  documentdomain.Service
	AccountSvc   accountdomain.Service
	JournalSvc   journaldomain.Service
	InvoiceSvc   invoicedomain.Service
	LeadSvc      leaddomain.Service
	QuoteSvc     quotedomain.Service
	ScreeningSvc screeningdomain.Service
	HSCodeSvc    hscodedomain.Service
	DEBSvc       debdomain.Service
	BISvc        bidomain.Service
	AlertSvc     alertdomain.Service

	Hub        *liveevents.Hub
	APILimiter *ratelimit.APILimiter `optional:"true"`
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

// NewServer wires the handlers onto the engine.
func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Engine,
		log:             p.Log.Named("server"),
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		sessions:        p.Sessions,
		authsvc:         p.AuthSvc,
		oauthsvc:        p.OAuthSvc,
		apiKeySvc:       p.APIKeySvc,
		apiKeyLimiter:   newRateLimiter(5, time.Minute),
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		invitationSvc:   p.InvitationSvc,
		refrepo:         p.RefRepo,
		taxSvc:          p.TaxSvc,
		productSvc:      p.ProductSvc,
		documentSvc:     p.DocumentSvc,
		accountSvc:      p.AccountSvc,
		journalSvc:      p.JournalSvc,
		invoiceSvc:      p.InvoiceSvc,
		leadSvc:         p.LeadSvc,
		quoteSvc:        p.QuoteSvc,
		screeningSvc:    p.ScreeningSvc,
		hscodeSvc:       p.HSCodeSvc,
		debSvc:          p.DEBSvc,
		biSvc:           p.BISvc,
		alertSvc:        p.AlertSvc,
		hub:             p.Hub,
		apiLimiter:      p.APILimiter,
	}

	s.registerAuthRoutes()
	s.registerReferenceRoutes()
	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) registerAuthRoutes() {
	r := s.engine

	r.POST("/auth/signup", s.Signup)
	r.POST("/auth/login", s.Login)
	r.POST("/auth/forgot", s.Forgot)
	r.GET("/auth/providers", s.AuthProviders)
	r.GET("/login/:name", s.OAuthLogin)

	r.POST("/auth/logout", s.Logout)
	r.GET("/auth/me", s.Me)

	authed := r.Group("/auth", s.WebAuthRequired())
	authed.POST("/change-password", s.ChangePassword)
	authed.GET("/user/orgs", s.ListUserOrgs)
	authed.POST("/user/orgs", s.CreateOrganization)
	authed.POST("/user/using/:orgId", s.UseOrg)
	authed.POST("/invites/:invite_id/accept", s.AcceptInvite)
}

func (s *Server) registerReferenceRoutes() {
	ref := s.engine.Group("/reference")
	ref.GET("/countries", s.ListCountries)
	ref.GET("/timezones", s.ListTimezones)
	ref.GET("/currencies", s.ListCurrencies)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APIAuthRequired(), s.RateLimit())

	idp := api.Group("/idp")
	idp.POST("/documents", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionWrite), s.CreateDocument)
	idp.GET("/documents", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionRead), s.ListDocuments)
	idp.GET("/documents/:document_id", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionRead), s.GetDocument)
	idp.DELETE("/documents/:document_id", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionDelete), s.DeleteDocument)
	idp.POST("/documents/:document_id/analyze", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionWrite), s.AnalyzeDocument)
	idp.POST("/documents/:document_id/remap", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionWrite), s.RemapDocument)
	idp.GET("/documents/:document_id/events", s.authorizeOrgAction(authorization.ObjectDocument, authorization.ActionRead), s.DocumentEvents)
	idp.POST("/hscodes/suggest", s.authorizeOrgAction(authorization.ObjectHSCode, authorization.ActionWrite), s.SuggestHSCode)
	idp.GET("/hscodes", s.authorizeOrgAction(authorization.ObjectHSCode, authorization.ActionRead), s.ListHSCodes)

	erp := api.Group("/erp")
	erp.POST("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionWrite), s.CreateAccount)
	erp.GET("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionRead), s.ListAccounts)
	erp.GET("/accounts/:account_id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionRead), s.GetAccount)
	erp.PATCH("/accounts/:account_id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionWrite), s.UpdateAccount)
	erp.DELETE("/accounts/:account_id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionDelete), s.DeactivateAccount)

	erp.POST("/journal-entries", s.authorizeOrgAction(authorization.ObjectJournal, authorization.ActionWrite), s.CreateJournalEntry)
	erp.GET("/journal-entries", s.authorizeOrgAction(authorization.ObjectJournal, authorization.ActionRead), s.ListJournalEntries)
	erp.GET("/journal-entries/:entry_id", s.authorizeOrgAction(authorization.ObjectJournal, authorization.ActionRead), s.GetJournalEntry)
	erp.POST("/journal-entries/:entry_id/post", s.authorizeOrgAction(authorization.ObjectJournal, authorization.ActionWrite), s.PostJournalEntry)
	erp.POST("/journal-entries/:entry_id/reverse", s.authorizeOrgAction(authorization.ObjectJournal, authorization.ActionWrite), s.ReverseJournalEntry)

	erp.POST("/invoices", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.CreateInvoice)
	erp.GET("/invoices", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.ListInvoices)
	erp.GET("/invoices/:invoice_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.GetInvoice)
	erp.PATCH("/invoices/:invoice_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.UpdateInvoiceDraft)
	erp.POST("/invoices/:invoice_id/open", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.OpenInvoice)
	erp.POST("/invoices/:invoice_id/pay", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.PayInvoice)
	erp.POST("/invoices/:invoice_id/void", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.VoidInvoice)
	erp.GET("/invoices/:invoice_id/pdf", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.InvoicePDF)

	erp.POST("/tax-definitions", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.CreateTaxDefinition)
	erp.GET("/tax-definitions", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.ListTaxDefinitions)
	erp.PATCH("/tax-definitions/:tax_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.UpdateTaxDefinition)
	erp.DELETE("/tax-definitions/:tax_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.DisableTaxDefinition)

	erp.POST("/products", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.CreateProduct)
	erp.GET("/products", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.ListProducts)
	erp.GET("/products/:product_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionRead), s.GetProductByID)
	erp.PATCH("/products/:product_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.UpdateProduct)
	erp.DELETE("/products/:product_id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionWrite), s.ArchiveProduct)

	erp.POST("/deb/declarations", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.CreateDEBDeclaration)
	erp.GET("/deb/declarations", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionRead), s.ListDEBDeclarations)
	erp.GET("/deb/declarations/:declaration_id", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionRead), s.GetDEBDeclaration)
	erp.POST("/deb/declarations/:declaration_id/generate", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.GenerateDEBDeclaration)
	erp.POST("/deb/declarations/:declaration_id/lines", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.AddDEBLine)
	erp.PATCH("/deb/declarations/:declaration_id/lines/:line_id", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.UpdateDEBLine)
	erp.DELETE("/deb/declarations/:declaration_id/lines/:line_id", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionDelete), s.DeleteDEBLine)
	erp.POST("/deb/declarations/:declaration_id/validate", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.ValidateDEBDeclaration)
	erp.POST("/deb/declarations/:declaration_id/submit", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.SubmitDEBDeclaration)
	erp.POST("/deb/declarations/:declaration_id/reopen", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionWrite), s.ReopenDEBDeclaration)
	erp.GET("/deb/declarations/:declaration_id/export", s.authorizeOrgAction(authorization.ObjectDEB, authorization.ActionRead), s.ExportDEBDeclaration)

	crm := api.Group("/crm")
	crm.POST("/leads", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionWrite), s.CreateLead)
	crm.GET("/leads", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionRead), s.ListLeads)
	crm.GET("/leads/:lead_id", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionRead), s.GetLead)
	crm.PATCH("/leads/:lead_id", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionWrite), s.UpdateLead)
	crm.PATCH("/leads/:lead_id/status", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionWrite), s.UpdateLeadStatus)
	crm.POST("/leads/source", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionWrite), s.SourceLeads)

	crm.POST("/quotes", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionWrite), s.CreateQuote)
	crm.GET("/quotes", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionRead), s.ListQuotes)
	crm.GET("/quotes/:quote_id", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionRead), s.GetQuote)
	crm.PATCH("/quotes/:quote_id", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionWrite), s.UpdateQuoteDraft)
	crm.POST("/quotes/:quote_id/send", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionWrite), s.SendQuote)
	crm.POST("/quotes/:quote_id/accept", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionWrite), s.AcceptQuote)
	crm.POST("/quotes/:quote_id/reject", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionWrite), s.RejectQuote)
	crm.GET("/quotes/:quote_id/pdf", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionRead), s.QuotePDF)

	scr := api.Group("/screening")
	scr.POST("/jobs", s.authorizeOrgAction(authorization.ObjectScreening, authorization.ActionWrite), s.CreateScreeningJob)
	scr.GET("/jobs", s.authorizeOrgAction(authorization.ObjectScreening, authorization.ActionRead), s.ListScreeningJobs)
	scr.GET("/jobs/:job_id", s.authorizeOrgAction(authorization.ObjectScreening, authorization.ActionRead), s.GetScreeningJob)
	scr.POST("/jobs/:job_id/rerun", s.authorizeOrgAction(authorization.ObjectScreening, authorization.ActionWrite), s.RerunScreeningJob)

	biGroup := api.Group("/bi")
	biGroup.GET("/overview", s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionRead), s.BIOverview)

	if s.cfg.Environment != "production" {
		s.engine.POST("/api/test/cleanup", s.TestCleanup)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/api", s.WebAuthRequired(), s.OrgContext())

	admin.GET("/organization", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionRead), s.GetOrganization)
	admin.GET("/members", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionRead), s.ListMembers)

	admin.POST("/invites", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateInvite)
	admin.GET("/invites", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionRead), s.ListInvites)
	admin.DELETE("/invites/:invite_id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.RevokeInvite)

	admin.GET("/api-keys", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionRead), s.ListAPIKeys)
	admin.GET("/api-keys/scopes", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionRead), s.ListAPIKeyScopes)
	admin.POST("/api-keys", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAdmin), s.CreateAPIKey)
	admin.POST("/api-keys/:key_id/reveal", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAdmin), s.RevealAPIKey)
	admin.DELETE("/api-keys/:key_id", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAdmin), s.RevokeAPIKey)

	admin.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionRead), s.ListAuditLogs)

	admin.GET("/alerts", s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionRead), s.ListAlerts)
	admin.POST("/alerts/:alert_id/ack", s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionWrite), s.AcknowledgeAlert)
}

// APIAuthRequired authenticates /api traffic: an API key when one is
// presented, a session plus explicit org context otherwise.
func (s *Server) APIAuthRequired() gin.HandlerFunc {
	apiKeyAuth := s.APIKeyRequired()
	return func(c *gin.Context) {
		if hasAPIKeyCredential(c) {
			apiKeyAuth(c)
			return
		}

		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		sess, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextUserIDKey, sess.UserID.String())
		c.Set(contextSessionKey, sess)

		orgID, err := s.orgIDFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if _, err := s.organizationSvc.MemberRole(c.Request.Context(), orgID.String(), sess.UserID); err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontextWithActor(c, int64(orgID), sess.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
