package login

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dcrodman/tether/internal/auth"
	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/client"
	"github.com/dcrodman/tether/internal/dispatch"
	"github.com/dcrodman/tether/internal/packets"
)

// Number of times a freshly generated token is regenerated if it collides with a live one.
const tokenAttempts = 3

var tracer = otel.Tracer("github.com/dcrodman/tether/internal/login")

// Server is the LOGIN backend. It authenticates clients with their username and
// password, issues session tokens and answers heartbeat pings. Responses are never
// written directly; they are pushed onto Events for the dispatcher.
type Server struct {
	Name          string
	Config        *core.Config
	Logger        *logrus.Logger
	Metrics       *core.Metrics
	Authenticator *auth.Authenticator
	Tokens        auth.TokenStore
	Events        *dispatch.Queue
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Events == nil {
		return errors.New("login server requires an event queue")
	}
	if s.Tokens == nil {
		s.Tokens = auth.NewMemoryTokenStore()
	}
	if s.Authenticator == nil {
		s.Authenticator = &auth.Authenticator{}
	}
	return nil
}

func (s *Server) Handle(ctx context.Context, c *client.Client, header packets.Header) error {
	logger := s.Logger.WithField("client", c.ID())
	s.Metrics.PacketsReceived.WithLabelValues(header.Type().String()).Inc()

	switch header.Type() {
	case packets.AuthRequestType:
		return s.handleAuthRequest(ctx, c, header)
	case packets.PingType:
		if !c.Authenticated() {
			logger.Warn("dropping ping from unauthenticated client")
			return nil
		}
		ping := packets.EncodeEmpty(packets.PingType)
		s.Events.Write(c.ID(), ping[:])
	case packets.DisconnectType:
		logger.Info("client requested disconnect")
		return c.Close()
	case packets.AuthResponseType:
		logger.Warn("dropping unexpected AuthResponse from client")
		_, err := io.CopyN(io.Discard, c, packets.AuthResponseSize)
		return err
	default:
		logger.Infof("received unknown packet type %d (version %d)", header.Code, header.Version)
	}

	return nil
}

// handleAuthRequest reads the credentials that follow the header and answers with
// either a new session token or the failure sentinel.
func (s *Server) handleAuthRequest(ctx context.Context, c *client.Client, header packets.Header) error {
	ctx, span := tracer.Start(ctx, "login.AuthRequest", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", int64(c.ID())))

	logger := s.Logger.WithField("client", c.ID())

	// The payload is read regardless of the version so the stream stays aligned.
	req, err := packets.ReadAuthRequest(c)
	if err != nil && !errors.Is(err, packets.ErrDecode) {
		return fmt.Errorf("error reading auth request: %w", err)
	}

	switch {
	case header.Version != packets.AuthRequestVersion:
		logger.Warnf("rejecting auth request with version %d", header.Version)
		return s.reject(c, "version")
	case err != nil:
		logger.Warnf("rejecting malformed auth request: %v", err)
		return s.reject(c, "malformed")
	}

	if err := s.Authenticator.Authenticate(ctx, req.Username, req.Password); err != nil {
		span.RecordError(err)
		logger.Infof("failed login for %q: %v", req.Username, err)
		return s.reject(c, "invalid_credentials")
	}

	token, err := s.issueToken(req.Username)
	if err != nil {
		span.RecordError(err)
		logger.Errorf("error issuing token: %v", err)
		return s.reject(c, "error")
	}

	// A repeated handshake replaces the previous session token.
	s.revokeToken(c)
	c.Authenticate(req.Username, token)
	s.Metrics.AuthAttempts.WithLabelValues("success").Inc()
	logger.Infof("authenticated %q", req.Username)

	pkt := packets.EncodeAuthResponse(token)
	s.send(c, pkt[:])
	return nil
}

func (s *Server) issueToken(username string) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		token, err := auth.NewToken()
		if err != nil {
			return "", err
		}

		err = s.Tokens.Issue(token, username, s.Config.Auth.TokenTTL)
		if errors.Is(err, auth.ErrTokenExists) {
			continue
		} else if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", auth.ErrTokenExists
}

func (s *Server) reject(c *client.Client, reason string) error {
	s.Metrics.AuthAttempts.WithLabelValues(reason).Inc()
	pkt := packets.EncodeAuthResponse(packets.AuthFailureToken)
	s.send(c, pkt[:])
	return nil
}

func (s *Server) send(c *client.Client, data []byte) {
	s.Events.Write(c.ID(), data)
}

// Disconnected revokes the token issued to a client whose connection has closed.
func (s *Server) Disconnected(c *client.Client) {
	s.revokeToken(c)
}

func (s *Server) revokeToken(c *client.Client) {
	token := c.Token()
	if token == "" {
		return
	}
	logger := s.Logger.WithField("client", c.ID())

	// Another server sharing the store may hold the token by now.
	owner, ok, err := s.Tokens.Lookup(token)
	switch {
	case err != nil:
		logger.Warnf("error looking up token: %v", err)
	case !ok:
		logger.Info("token already expired")
		return
	case owner != c.Username():
		logger.Warnf("not revoking token held by %q", owner)
		return
	}

	if err := s.Tokens.Revoke(token); err != nil {
		logger.Warnf("error revoking token: %v", err)
	}
}
