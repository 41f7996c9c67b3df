package sources

import "os"

// FileCertProvider is a CertProvider backed by PEM files on disk, for
// deployments where certificate issuance drops material into the
// coordinator's filesystem. Empty paths mean the integration is disabled.
type FileCertProvider struct {
	ServerCertPath string
	PrivateKeyPath string
	CACertPath     string
	Label          string
}

func (p *FileCertProvider) Enabled() bool {
	return p.ServerCertPath != "" && p.PrivateKeyPath != "" && p.CACertPath != ""
}

func (p *FileCertProvider) ServerCert() string { return readFile(p.ServerCertPath) }
func (p *FileCertProvider) PrivateKey() string { return readFile(p.PrivateKeyPath) }
func (p *FileCertProvider) CACert() string     { return readFile(p.CACertPath) }
func (p *FileCertProvider) SecretLabel() string {
	return p.Label
}

func readFile(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(raw)
}
