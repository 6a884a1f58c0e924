package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/tlsutil"
)

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Handle("/sql", s.authMiddleware(http.HandlerFunc(s.handleSQL))).Methods(http.MethodPost)
	return s.obs.Middleware(r)
}

// authMiddleware applies the transport policy and resolves the connection's
// identity before any query is served.
//
// The requested user is chosen by the HTTP default-identity rules: with a
// provider configured it comes from the Authorization header; without one it
// is the certificate's Common Name under verify-full, and the fixed
// superuser identity otherwise (under verify-ca the certificate proves
// transport trust, never identity).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx)
		if logger == nil {
			logger = s.logger
		}

		transport := tlsutil.Enforce(s.config.Mode, r.TLS != nil)

		var commonName string
		var hasCert bool
		if r.TLS != nil {
			commonName, hasCert = tlsutil.PeerCommonName(r.TLS)
		}

		var user string
		cred := auth.NoCredential()
		switch {
		case s.config.ProviderConfigured:
			user, cred = extractCredential(r)
		case transport.VerifyCommonName && hasCert:
			user = commonName
		default:
			user = s.config.DefaultUser
		}

		identity, err := s.authenticator.Authenticate(ctx, auth.Request{
			User:           user,
			Credential:     cred,
			Transport:      transport,
			CertCommonName: commonName,
			HasCert:        hasCert,
		})
		if err != nil {
			authErr, ok := err.(*auth.Error)
			if !ok {
				authErr = auth.Reject(auth.InvalidCredential, user)
			}
			s.metrics.RecordAuthentication(metrics.ProtocolHTTP, string(authErr.Kind))
			logger.Info("Request rejected", "kind", string(authErr.Kind))
			writeAuthError(w, authErr)
			return
		}

		s.metrics.RecordAuthentication(metrics.ProtocolHTTP, "ok")
		logger.Debug("Request authenticated", "identity", identity)

		ctx = auth.ContextWithIdentity(ctx, &auth.Identity{
			Subject: identity,
			Method:  authMethod(s.config.ProviderConfigured, hasCert),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractCredential reads the Authorization header. Basic carries the
// requested user alongside the password; Bearer carries no user field. Any
// other scheme, or absence, is the absent credential.
func extractCredential(r *http.Request) (string, auth.Credential) {
	if user, password, ok := r.BasicAuth(); ok {
		return user, auth.PasswordCredential(password)
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return "", auth.BearerCredential(token)
	}
	return "", auth.NoCredential()
}

func authMethod(providerConfigured, hasCert bool) string {
	switch {
	case providerConfigured:
		return "provider"
	case hasCert:
		return "certificate"
	default:
		return "trust"
	}
}

// writeAuthError renders a structured failure in HTTP form. Every
// credential-related failure collapses to the same generic body.
func writeAuthError(w http.ResponseWriter, authErr *auth.Error) {
	message := "unauthorized"
	if authErr.Kind == auth.TLSRequired {
		message = "HTTPS is required"
	}
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, message)
}

type sqlResult struct {
	Rows [][]string `json:"rows"`
}

type sqlResponse struct {
	Results []sqlResult `json:"results"`
}

// handleSQL answers the current-user probe for the authenticated identity.
func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthError(w, auth.Reject(auth.InvalidCredential, ""))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	sql := values.Get("sql")
	if !strings.Contains(strings.ToLower(sql), "current_user") {
		http.Error(w, "unsupported query", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sqlResponse{
		Results: []sqlResult{{Rows: [][]string{{identity.Subject}}}},
	})
}
