package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"driverhub/internal/application"
	"driverhub/internal/identity"
	"driverhub/internal/realtime"
	"driverhub/internal/store"
	"driverhub/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// IdentityClient is the identity surface the HTTP layer needs: everything the
// application service uses plus password sign-in for returning applicants.
type IdentityClient interface {
	identity.Provider
	SignIn(ctx context.Context, email, password string) (string, int32, error)
}

type Service struct {
	logger       *logrus.Logger
	config       *types.Config
	portalConfig *types.PortalConfig

	apps      *application.Service
	autosaver *application.Autosaver
	messages  *store.MessageRepository
	activity  *store.ActivityLogRepository
	idents    IdentityClient
	hub       *realtime.Hub

	cookie    *securecookie.SecureCookie
	jwksCache *jwk.Cache
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	portalConfig *types.PortalConfig,
	apps *application.Service,
	autosaver *application.Autosaver,
	messages *store.MessageRepository,
	activity *store.ActivityLogRepository,
	idents IdentityClient,
	hub *realtime.Hub,
	jwksCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger:       logger,
		config:       config,
		portalConfig: portalConfig,

		apps:      apps,
		autosaver: autosaver,
		messages:  messages,
		activity:  activity,
		idents:    idents,
		hub:       hub,

		cookie:    securecookie.New(hashKey, blockKey),
		jwksCache: jwksCache,
		jwksURL:   jwksURL,

		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.HandleFunc("/config", s.handleConfig, http.MethodGet)

	r.HandleFunc("/session", s.handleCreateSession, http.MethodPost)
	r.HandleFunc("/login", s.handleLogin, http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout, http.MethodPost)

	r.HandleFunc("/password-reset", s.handlePasswordResetRequest, http.MethodPost)
	r.HandleFunc("/password-reset/verify", s.handlePasswordResetVerify, http.MethodPost)
	r.HandleFunc("/password-reset/confirm", s.handlePasswordResetConfirm, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireIdentity)

		r.HandleFunc("/application", s.handleGetApplication, http.MethodGet)
		r.HandleFunc("/application/draft", s.handleSaveDraft, http.MethodPut)
		r.HandleFunc("/application/submit", s.handleSubmit, http.MethodPost)

		r.HandleFunc("/application/progress", s.handleToggleProgress, http.MethodPatch)
		r.HandleFunc("/application/progress/document", s.handleProgressDocument, http.MethodPost)
		r.HandleFunc("/application/convert", s.handleConvert, http.MethodPost)

		r.HandleFunc("/application/activity", s.handleActivity, http.MethodGet)

		r.HandleFunc("/application/messages", s.handleConversation, http.MethodGet)
		r.HandleFunc("/application/messages", s.handlePostMessage, http.MethodPost)
		r.HandleFunc("/application/messages/read", s.handleMarkRead, http.MethodPost)
		r.HandleFunc("/application/messages/unread", s.handleUnreadCount, http.MethodGet)

		r.HandleFunc("/ws", s.handleWebsocket, http.MethodGet)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.portalConfig)
}

func (s *Service) identityFromContext(ctx context.Context) (*identity.Identity, error) {
	ident, ok := ctx.Value(contextKeyIdentity).(*identity.Identity)
	if !ok || ident == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return ident, nil
}
