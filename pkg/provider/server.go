package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/authlab/oidc-lab/pkg/nonce"
	"github.com/authlab/oidc-lab/pkg/oauth2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Server is the OAuth2 / OpenID Connect authorization server. All state is
// constructor-injected; there is no package-level mutable state.
type Server struct {
	issuer        string
	metadata      *Metadata
	clients       ClientStore
	users         UserStore
	codes         CodeStore
	tokens        TokenStore
	transactions  TransactionStore
	nonces        nonce.Service
	authenticator Authenticator
	sigPrK        jwk.Key
	jwks          jwk.Set
	grants        map[string]GrantHandler
	codeTTL       time.Duration
	tokenTTL      time.Duration
	idTokenTTL    time.Duration
	autoApprove   bool
}

type Option func(*Server) error

func New(opts ...Option) (*Server, error) {
	s := &Server{
		codeTTL:    10 * time.Minute,
		tokenTTL:   time.Hour,
		idTokenTTL: time.Hour,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if s.sigPrK == nil {
		if err := WithRandomSigningKey()(s); err != nil {
			return nil, err
		}
	}
	if s.clients == nil {
		s.clients = NewMemoryClientStore()
	}
	if s.users == nil {
		s.users = NewMemoryUserStore()
	}
	if s.codes == nil {
		s.codes = NewMemoryCodeStore()
	}
	if s.tokens == nil {
		s.tokens = NewMemoryTokenStore()
	}
	if s.transactions == nil {
		s.transactions = NewMemoryTransactionStore()
	}
	if s.nonces == nil {
		nonces, err := nonce.NewService()
		if err != nil {
			return nil, fmt.Errorf("unable to create nonce service: %w", err)
		}
		s.nonces = nonces
	}
	if s.authenticator == nil {
		s.authenticator = &BasicAuthenticator{Users: s.users}
	}

	s.registerGrantHandlers()
	s.metadata = NewMetadata(s.issuer)

	return s, nil
}

// ErrorHandlerMiddleware recovers handler errors and maps them to the
// OAuth2 error response shape. No error leaks to the transport layer.
func ErrorHandlerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}
		slog.Error("request failed", "error", err, "path", c.Path(), "remote_addr", c.RealIP())

		if oauthErr, ok := err.(*oauth2.Error); ok {
			return c.JSON(oauthErr.HttpStatus, oauthErr)
		}
		if echoErr, ok := err.(*echo.HTTPError); ok {
			return c.JSON(echoErr.Code, &oauth2.Error{
				Code:        "invalid_request",
				Description: fmt.Sprintf("%v", echoErr.Message),
			})
		}
		return c.JSON(http.StatusInternalServerError, &oauth2.Error{
			Code:        "server_error",
			Description: err.Error(),
		})
	}
}

func (s *Server) MountRoutes(e *echo.Echo) {
	e.Use(
		middleware.Logger(),
		ErrorHandlerMiddleware,
	)
	e.GET("/dialog/auth", s.AuthorizationEndpoint)
	e.POST("/dialog/auth/decision", s.DecisionEndpoint)
	e.POST("/oauth/token", s.TokenEndpoint)
	e.GET("/api/userinfo", s.UserinfoEndpoint)
	e.GET("/api/clientinfo", s.ClientinfoEndpoint)
	e.GET("/.well-known/jwks.json", s.JWKS)
	e.GET("/.well-known/openid-configuration", s.OpenidConfigurationEndpoint)
}

// ConsentDocument is rendered to the user agent while a transaction awaits
// the decision. View rendering is left to the embedding application.
type ConsentDocument struct {
	TransactionID string `json:"transaction_id"`
	ClientName    string `json:"client_name"`
	User          string `json:"user"`
	Scope         string `json:"scope,omitempty"`
	ResponseType  string `json:"response_type"`
	DecisionURI   string `json:"decision_uri"`
}

// AuthorizationEndpoint starts an authorization transaction. Failures that
// occur before the client is resolved are rendered locally, never via
// redirect, to avoid an open redirector.
func (s *Server) AuthorizationEndpoint(c echo.Context) error {
	var responseType, clientID, redirectURI, scope, state, nonceParam string
	binderr := echo.FormFieldBinder(c).
		MustString("response_type", &responseType).
		MustString("client_id", &clientID).
		MustString("redirect_uri", &redirectURI).
		String("scope", &scope).
		String("state", &state).
		String("nonce", &nonceParam).
		BindError()
	if binderr != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: binderr.Error(),
		}
	}

	client, err := s.clients.FindByClientID(clientID)
	if err != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_client",
			Description: fmt.Sprintf("unknown client_id: %q", clientID),
		}
	}

	handler, ok := s.grants[NormalizeResponseType(responseType)]
	if !ok {
		return redirectWithError(c, redirectURI, state, &oauth2.Error{
			Code:        "unsupported_response_type",
			Description: fmt.Sprintf("unsupported response_type: %q", responseType),
		})
	}

	user, err := s.authenticator.Authenticate(c)
	if err != nil {
		c.Response().Header().Set("WWW-Authenticate", `Basic realm="authorization"`)
		return &oauth2.Error{
			HttpStatus:  http.StatusUnauthorized,
			Code:        "login_required",
			Description: "user authentication required",
		}
	}

	txID, err := s.nonces.Get()
	if err != nil {
		return redirectWithError(c, redirectURI, state, &oauth2.Error{
			Code:        "server_error",
			Description: fmt.Errorf("unable to create transaction: %w", err).Error(),
		})
	}

	tx := &Transaction{
		ID:           txID,
		Status:       StatusRequested,
		Client:       client,
		User:         user,
		ResponseType: responseType,
		RedirectURI:  redirectURI,
		Scope:        scope,
		State:        state,
		Nonce:        nonceParam,
		CreatedAt:    time.Now(),
	}

	if s.autoApprove {
		return s.finalize(c, tx, handler)
	}

	tx.Status = StatusAwaitingDecision
	if err := s.transactions.Save(tx); err != nil {
		return redirectWithError(c, redirectURI, state, &oauth2.Error{
			Code:        "server_error",
			Description: fmt.Errorf("unable to save transaction: %w", err).Error(),
		})
	}

	slog.Info("authorization transaction created", "transaction_id", tx.ID,
		"client_id", client.ClientID, "response_type", responseType)

	return c.JSON(http.StatusOK, &ConsentDocument{
		TransactionID: tx.ID,
		ClientName:    client.Name,
		User:          user.Name,
		Scope:         scope,
		ResponseType:  responseType,
		DecisionURI:   "/dialog/auth/decision",
	})
}

// DecisionEndpoint completes a pending transaction. The transaction ID is
// redeemed through the nonce service, so each transaction decides at most
// once; replays fail before any grant handler runs.
func (s *Server) DecisionEndpoint(c echo.Context) error {
	var txID, decision string
	binderr := echo.FormFieldBinder(c).
		MustString("transaction_id", &txID).
		MustString("decision", &decision).
		BindError()
	if binderr != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: binderr.Error(),
		}
	}

	if err := s.nonces.Redeem(txID); err != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "unknown or already decided transaction",
		}
	}

	tx, err := s.transactions.Find(txID)
	if err != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "unknown or already decided transaction",
		}
	}
	s.transactions.Delete(txID)

	if decision != "allow" {
		tx.Status = StatusDenied
		slog.Info("authorization denied", "transaction_id", tx.ID, "client_id", tx.Client.ClientID)
		return redirectWithError(c, tx.RedirectURI, tx.State, &oauth2.Error{
			Code:        "access_denied",
			Description: "the resource owner denied the request",
		})
	}

	handler, ok := s.grants[NormalizeResponseType(tx.ResponseType)]
	if !ok {
		return redirectWithError(c, tx.RedirectURI, tx.State, &oauth2.Error{
			Code:        "unsupported_response_type",
			Description: fmt.Sprintf("unsupported response_type: %q", tx.ResponseType),
		})
	}

	return s.finalize(c, tx, handler)
}

// finalize dispatches to the grant handler and produces the terminal
// redirect. The transaction record is gone by the time this returns.
func (s *Server) finalize(c echo.Context, tx *Transaction, handler GrantHandler) error {
	params, err := handler.Grant(tx)
	if err != nil {
		return redirectWithError(c, tx.RedirectURI, tx.State, &oauth2.Error{
			Code:        "server_error",
			Description: fmt.Errorf("unable to issue grant: %w", err).Error(),
		})
	}
	tx.Status = StatusGranted

	if tx.State != "" {
		params.Set("state", tx.State)
	}

	slog.Info("authorization granted", "transaction_id", tx.ID,
		"client_id", tx.Client.ClientID, "response_type", tx.ResponseType)

	// a code alone travels in the query; any token or id_token moves the
	// whole response into the fragment, per OIDC response mode defaults
	if params.Has("access_token") || params.Has("id_token") {
		return c.Redirect(http.StatusFound, tx.RedirectURI+"#"+params.Encode())
	}
	return c.Redirect(http.StatusFound, tx.RedirectURI+"?"+params.Encode())
}

func redirectWithError(c echo.Context, redirectURI string, state string, err *oauth2.Error) error {
	params := url.Values{}
	if state != "" {
		params.Add("state", state)
	}
	params.Add("error", err.Code)
	params.Add("error_description", err.Description)

	return c.Redirect(http.StatusFound, redirectURI+"?"+params.Encode())
}

// UserinfoEndpoint serves claims about the user behind a bearer token.
func (s *Server) UserinfoEndpoint(c echo.Context) error {
	token, err := s.bearerToken(c)
	if err != nil {
		return err
	}

	info := map[string]string{
		"sub":     token.UserID,
		"user_id": token.UserID,
		"scope":   token.Scope,
	}
	if token.UserID != "" {
		user, err := s.users.FindByID(token.UserID)
		if err != nil {
			return fmt.Errorf("unable to resolve token user: %w", err)
		}
		info["name"] = user.Name
	} else {
		// client-only token from the client_credentials grant
		client, err := s.clients.FindByClientID(token.ClientID)
		if err != nil {
			return fmt.Errorf("unable to resolve token client: %w", err)
		}
		info["name"] = client.Name
	}

	return c.JSON(http.StatusOK, info)
}

// ClientinfoEndpoint serves claims about the client a bearer token was
// issued to.
func (s *Server) ClientinfoEndpoint(c echo.Context) error {
	token, err := s.bearerToken(c)
	if err != nil {
		return err
	}

	client, findErr := s.clients.FindByClientID(token.ClientID)
	if findErr != nil {
		return fmt.Errorf("unable to resolve token client: %w", findErr)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"client_id": client.ClientID,
		"name":      client.Name,
		"scope":     token.Scope,
	})
}

func (s *Server) bearerToken(c echo.Context) (*AccessToken, *oauth2.Error) {
	authorization := c.Request().Header.Get(echo.HeaderAuthorization)
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || raw == "" {
		return nil, &oauth2.Error{
			HttpStatus:  http.StatusUnauthorized,
			Code:        "invalid_token",
			Description: "missing bearer token",
		}
	}

	token, err := s.tokens.Find(raw)
	if err != nil || token.Expired() {
		return nil, &oauth2.Error{
			HttpStatus:  http.StatusUnauthorized,
			Code:        "invalid_token",
			Description: "unknown or expired access token",
		}
	}
	return token, nil
}

// JWKS serves the public key set. Private material never leaves the
// signing key; the set holds derived public keys only.
func (s *Server) JWKS(c echo.Context) error {
	return c.JSON(http.StatusOK, s.jwks)
}

func (s *Server) OpenidConfigurationEndpoint(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metadata)
}
