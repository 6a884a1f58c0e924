package pgwire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"authgate/internal/auth"
)

// SQLSTATE codes emitted by the gateway.
const (
	sqlstateRejectedEstablishment = "08004" // sqlserver_rejected_establishment_of_sqlconnection
	sqlstateInvalidAuthorization  = "28000" // invalid_authorization_specification
	sqlstateInvalidPassword       = "28P01" // invalid_password
	sqlstateFeatureNotSupported   = "0A000" // feature_not_supported
)

// errorResponse maps a structured authentication failure to its pgwire
// representation. Distinct credential-related causes collapse to the same
// "invalid password" message so the response never reveals which part of the
// credential was wrong.
func errorResponse(authErr *auth.Error) *pgproto3.ErrorResponse {
	resp := &pgproto3.ErrorResponse{
		Severity:            "FATAL",
		SeverityUnlocalized: "FATAL",
	}
	switch authErr.Kind {
	case auth.TLSRequired:
		resp.Code = sqlstateRejectedEstablishment
		resp.Message = "TLS encryption is required"
	case auth.UnknownRole:
		resp.Code = sqlstateInvalidAuthorization
		resp.Message = fmt.Sprintf("role %q does not exist", authErr.User)
	case auth.CertificateUserMismatch, auth.CertificateInvalid:
		resp.Code = sqlstateInvalidAuthorization
		resp.Message = fmt.Sprintf("certificate authentication failed for user %q", authErr.User)
	default:
		// InvalidCredential, BadTenant, ProviderUnreachable
		resp.Code = sqlstateInvalidPassword
		resp.Message = "invalid password"
	}
	return resp
}
