package handlers

import (
	"time"

	"timebank/internal/blob"
	"timebank/internal/config"
	"timebank/internal/repos"
	"timebank/internal/services"
)

type Deps struct {
	Auth          *AuthHandler
	Catalog       *CatalogHandler
	Listings      *ListingHandler
	Applications  *ApplicationHandler
	Feedback      *FeedbackHandler
	Notifications *NotificationHandler
	Profiles      *ProfileHandler

	AuthSvc *services.AuthService
	Tokens  *services.TokenService
	Cfg     config.Config
}

// NewDeps wires the services over one store. A nil clock means wall time; a
// nil deliverer logs outbound notifications.
func NewDeps(store *repos.Store, cfg config.Config, blobs blob.Store, d services.Deliverer, now services.Clock) *Deps {
	policy := services.Policy{
		DescriptionMax:   cfg.DescriptionMax,
		ListingQuota:     cfg.ListingQuota,
		Cooldown:         cfg.ListingCooldown,
		DisableRateLimit: cfg.DisableRateLimit,
	}

	notes := services.NewNotificationService(store, d)
	authSvc := services.NewAuthService(store.Users)
	tokens := services.NewTokenService(cfg.JWTSecret, 24*time.Hour, now)
	listingSvc := services.NewListingService(store, policy, now, notes, blobs)
	appSvc := services.NewApplicationService(store, now, notes)
	doneSvc := services.NewCompletionService(store, now, notes)
	fbSvc := services.NewFeedbackService(store, now)
	catalogSvc := services.NewCatalogService(store)
	profileSvc := services.NewProfileService(store)

	return &Deps{
		Auth:          &AuthHandler{Auth: authSvc, Tokens: tokens, Secure: cfg.Production()},
		Catalog:       &CatalogHandler{Catalog: catalogSvc},
		Listings:      &ListingHandler{Listings: listingSvc, Blobs: blobs},
		Applications:  &ApplicationHandler{Apps: appSvc, Completion: doneSvc},
		Feedback:      &FeedbackHandler{Feedback: fbSvc, Profiles: profileSvc},
		Notifications: &NotificationHandler{Notes: notes},
		Profiles:      &ProfileHandler{Profiles: profileSvc},
		AuthSvc:       authSvc,
		Tokens:        tokens,
		Cfg:           cfg,
	}
}
