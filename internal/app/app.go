// Package app wires configuration, storage, and services into a running
// application.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"qpin/internal/config"
	"qpin/internal/db/repository"
	"qpin/internal/domain"
	"qpin/internal/oauth"
	"qpin/internal/service"
	"qpin/internal/token"
)

// Deps holds the external dependencies that main() must provide:
// database handles, config, and the root logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the HTTP handler needs.
type Services struct {
	Auth       *service.AuthService
	User       *service.UserService
	Group      *service.GroupService
	TokenAdmin *service.TokenAdminService
	Assessment *service.AssessmentService
}

// App holds the fully wired application. Users is exposed for the
// authentication middleware, Scheduler for the server lifecycle.
type App struct {
	Services  Services
	Users     domain.UserRepository
	Codec     *token.Codec
	Scheduler *service.Scheduler
}

// New wires repositories and services from the provided deps. The Google
// identity provider is only constructed when configured; without it the
// OAuth endpoints report a validation error and the rest of the API works
// normally.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	users := repository.NewUserRepo(deps.WriteDB, deps.ReadDB)
	groups := repository.NewGroupRepo(deps.WriteDB, deps.ReadDB)
	tokens := repository.NewRefreshTokenRepo(deps.WriteDB, deps.ReadDB)
	assessments := repository.NewAssessmentRepo(deps.WriteDB, deps.ReadDB)

	codec, err := token.NewCodec(cfg.SecretKey, cfg.JWTAlgorithm)
	if err != nil {
		return nil, err
	}
	enduser, err := token.NewEnduserEncoder(cfg.SecretKey, cfg.KDFIterations)
	if err != nil {
		return nil, err
	}

	var provider domain.IdentityProvider
	if cfg.Google.Enabled() {
		google, err := oauth.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)
		if err != nil {
			return nil, err
		}
		provider = google
	}

	authz := service.NewAuthorizer(groups)
	auth := service.NewAuthService(users, tokens, codec, enduser, provider, cfg.AccessTTL, cfg.RefreshTTL, deps.Logger)
	tokenAdmin := service.NewTokenAdminService(tokens, authz, deps.Logger)

	scheduler, err := service.NewScheduler(tokenAdmin, cfg.TokenCleanupInterval, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Services: Services{
			Auth:       auth,
			User:       service.NewUserService(users, groups, enduser, authz, deps.Logger),
			Group:      service.NewGroupService(groups, users, authz, deps.Logger),
			TokenAdmin: tokenAdmin,
			Assessment: service.NewAssessmentService(assessments, authz, deps.Logger),
		},
		Users:     users,
		Codec:     codec,
		Scheduler: scheduler,
	}, nil
}
