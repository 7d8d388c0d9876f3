package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/localnerve/authorizer-go"
	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
	"go.uber.org/zap"
)

// AuthService validates authorizer sessions and yields the opaque user id
// the engine stamps on owned records.
type AuthService struct {
	cfg *config.Config
	log *zap.SugaredLogger

	once    sync.Once
	client  *authorizer.AuthorizerClient
	initErr error
}

// NewAuthService creates the identity collaborator. The authorizer client is
// created on the first authenticated request, when the public URL is known.
func NewAuthService(cfg *config.Config, log *zap.SugaredLogger) *AuthService {
	if log == nil {
		log = zap.S()
	}
	return &AuthService{cfg: cfg, log: log}
}

// Initialized reports whether the authorizer client is ready
func (a *AuthService) Initialized() bool {
	return a.client != nil
}

func (a *AuthService) init(requestProtocol, requestHost string) error {
	a.once.Do(func() {
		// Ping the Authorizer service first
		if err := utils.PingAuthorizer(context.Background(), a.cfg.AuthzURL); err != nil {
			a.initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		a.log.Infow("initializing authorizer",
			"authorizerURL", a.cfg.AuthzURL, "clientID", a.cfg.AuthzClientID, "redirectURL", redirectURL)

		client, err := authorizer.NewAuthorizerClient(a.cfg.AuthzClientID, a.cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			a.initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
		a.client = client
	})
	return a.initErr
}

// ValidateSession validates a session cookie for the given roles and
// returns the session's user id
func (a *AuthService) ValidateSession(requestProtocol, requestHost, cookie string, roles []string) (string, error) {
	if err := a.init(requestProtocol, requestHost); err != nil {
		return "", err
	}

	// Convert roles to []*string
	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := a.client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return "", fmt.Errorf("session validation failed: %w", err)
	}

	if res == nil || !res.IsValid || res.User == nil {
		return "", fmt.Errorf("session is not valid")
	}

	return res.User.ID, nil
}
