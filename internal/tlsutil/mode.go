package tlsutil

import "fmt"

// Mode is the configured transport policy for a listener. It is fixed for the
// lifetime of the process.
type Mode int

const (
	// ModeDisable accepts plaintext connections only. A TLS negotiation
	// attempt is refused at the transport level, not with a protocol error.
	ModeDisable Mode = iota

	// ModeRequire rejects plaintext connections and negotiates TLS without
	// requesting a client certificate.
	ModeRequire

	// ModeVerifyCA negotiates TLS and requires a client certificate that
	// chain-verifies against the configured CA. The certificate's Common Name
	// is not matched against the requested user.
	ModeVerifyCA

	// ModeVerifyFull is ModeVerifyCA plus matching the certificate's Common
	// Name against the requested user.
	ModeVerifyFull
)

// ParseMode parses a transport mode from its configuration string.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "disable":
		return ModeDisable, nil
	case "require":
		return ModeRequire, nil
	case "verify-ca":
		return ModeVerifyCA, nil
	case "verify-full":
		return ModeVerifyFull, nil
	default:
		return ModeDisable, fmt.Errorf("invalid TLS mode: '%s'", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDisable:
		return "disable"
	case ModeRequire:
		return "require"
	case ModeVerifyCA:
		return "verify-ca"
	case ModeVerifyFull:
		return "verify-full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// TLSEnabled reports whether the mode negotiates TLS at all.
func (m Mode) TLSEnabled() bool {
	return m != ModeDisable
}

// RequiresClientCert reports whether the mode requires a chain-verified
// client certificate.
func (m Mode) RequiresClientCert() bool {
	return m == ModeVerifyCA || m == ModeVerifyFull
}

// VerifiesCommonName reports whether the certificate's Common Name must be
// matched against the requested user.
func (m Mode) VerifiesCommonName() bool {
	return m == ModeVerifyFull
}
