package routes

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"trust-verification-backend/internal/config"
	handler "trust-verification-backend/internal/handlers"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"
	"trust-verification-backend/internal/services/auth"
	"trust-verification-backend/internal/services/ledger"
	"trust-verification-backend/internal/services/marketplace"
	"trust-verification-backend/internal/services/scoring"
	"trust-verification-backend/internal/services/verification"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	userRepo := repository.NewUserRepository(db)
	smeRepo := repository.NewSMERepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	linkRepo := repository.NewLinkedAccountRepository(db)
	marketRepo := repository.NewMarketplaceRepository(db)

	provider := ledger.NewMonoProvider(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	ledgerSvc := ledger.NewService(txRepo, linkRepo, provider, cfg.ProviderTimeout)
	scorer := scoring.NewEngine(cfg.MinLedgerMonths)
	verificationSvc := verification.NewService(db, smeRepo, evidenceRepo, ledgerSvc, scorer, nil)
	marketplaceSvc := marketplace.NewService(marketRepo)
	authSvc := auth.NewService(userRepo, smeRepo, cfg.SessionTTL)

	if cfg.RefreshInterval > 0 {
		go ledgerSvc.RunScheduledRefresh(context.Background(), cfg.RefreshInterval, func(smeID uuid.UUID) {
			if err := verificationSvc.Advance(smeID); err != nil {
				slog.Error("advance after scheduled refresh", "sme_id", smeID, "err", err)
			}
		})
	}

	authHandler := handler.NewAuthHandler(authSvc)
	smeHandler := handler.NewSMEHandler(verificationSvc, smeRepo)
	lenderHandler := handler.NewLenderHandler(marketplaceSvc)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.POST("/sme/register", authHandler.RegisterSME)
	authGroup.POST("/lender/register", authHandler.RegisterLender)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)

	// SME routes: only the owning session may submit evidence or re-verify
	sme := api.Group("/sme")
	sme.Use(handler.RequireRole(authSvc, models.UserTypeSME))
	sme.POST("/profile", smeHandler.UpdateProfile)
	sme.GET("/profile", smeHandler.GetProfile)
	sme.POST("/upload/cac", smeHandler.UploadCAC)
	sme.POST("/upload/video", smeHandler.UploadVideo)
	sme.POST("/mono/connect", smeHandler.ConnectAccount)
	sme.POST("/reverify", smeHandler.Reverify)
	sme.GET("/dashboard", smeHandler.Dashboard)

	// Lender routes: marketplace is lender-only and serves verified SMEs only
	lender := api.Group("/lender")
	lender.Use(handler.RequireRole(authSvc, models.UserTypeLender))
	lender.GET("/marketplace", lenderHandler.Marketplace)
	lender.GET("/marketplace/:id", lenderHandler.MarketplaceDetail)
}
