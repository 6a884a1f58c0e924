package tlsutil

// OutcomeKind classifies the transport admission decision for one inbound
// connection.
type OutcomeKind int

const (
	// PlaintextAccepted admits the connection without TLS.
	PlaintextAccepted OutcomeKind = iota

	// TLSRequiredButAbsent rejects the connection: the mode requires TLS and
	// the client did not negotiate it.
	TLSRequiredButAbsent

	// TLSNegotiate admits the connection over TLS, with the certificate
	// requirements carried alongside.
	TLSNegotiate
)

// Outcome is the transport admission decision plus the certificate
// verification the transport layer must perform.
type Outcome struct {
	Kind              OutcomeKind
	RequireClientCert bool
	VerifyCommonName  bool
}

// Enforce decides transport admissibility for one connection given the
// configured mode and whether the client negotiated TLS.
//
// Under ModeDisable a TLS negotiation attempt never reaches this function:
// the protocol adapters refuse it at the transport level and the peer sees a
// raw handshake failure.
func Enforce(mode Mode, tlsNegotiated bool) Outcome {
	if mode == ModeDisable {
		return Outcome{Kind: PlaintextAccepted}
	}
	if !tlsNegotiated {
		return Outcome{Kind: TLSRequiredButAbsent}
	}
	return Outcome{
		Kind:              TLSNegotiate,
		RequireClientCert: mode.RequiresClientCert(),
		VerifyCommonName:  mode.VerifiesCommonName(),
	}
}
