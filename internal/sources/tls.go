package sources

import "github.com/edvin/coordinator/internal/model"

// CertProvider is the certificate-handler boundary: whatever issues and
// stores the coordinator's certificates implements this.
type CertProvider interface {
	// Enabled reports whether the certificates integration is active.
	Enabled() bool
	ServerCert() string
	PrivateKey() string
	CACert() string
	// SecretLabel is the vault label under which the private key is
	// stored, used to grant the key to other relations by reference.
	SecretLabel() string
}

// TLS exposes the certificate provider as a credential source.
type TLS struct {
	provider CertProvider
}

// NewTLS wraps a certificate provider.
func NewTLS(provider CertProvider) *TLS {
	return &TLS{provider: provider}
}

// Available reports whether TLS can be served: the integration is enabled
// and server cert, private key and CA cert are all present.
func (t *TLS) Available() bool {
	return t.provider.Enabled() &&
		t.provider.ServerCert() != "" &&
		t.provider.PrivateKey() != "" &&
		t.provider.CACert() != ""
}

// Read returns the full TLS material, or a NotFoundError when any part is
// missing.
func (t *TLS) Read() (*model.TLSMaterial, error) {
	if !t.Available() {
		return nil, &NotFoundError{Reason: "tls material incomplete"}
	}
	return &model.TLSMaterial{
		ServerCert: t.provider.ServerCert(),
		CACert:     t.provider.CACert(),
		PrivateKey: t.provider.PrivateKey(),
	}, nil
}

// SecretLabel returns the provider's vault secret label for the private key.
func (t *TLS) SecretLabel() string {
	return t.provider.SecretLabel()
}
