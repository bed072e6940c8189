package session

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

// SecurityConfig is the subset of SystemConfig.Security the Session needs
// to establish TLS (spec §4.4's TLS policy). Kept independent of
// configstore so session has no dependency on the config layer's types —
// the supervisor is the one place that translates between the two.
type SecurityConfig struct {
	TLSCertPath        string
	TLSKeyPath         string
	CACertPath         string
	ClientCertRequired bool
	InsecureSkipVerify bool
}

// minTLSVersion is the gateway's TLS floor (spec §4.4 "Protocol floor: TLS
// 1.2"), a named constant rather than a config field per SPEC_FULL.md §3.
const minTLSVersion = tls.VersionTLS12

// buildTLSConfig implements spec §4.4's TLS policy: peer verification on by
// default, CA file loaded when configured (else system roots), mutual TLS
// when both client cert and key are configured, SNI set to host.
func buildTLSConfig(host string, sec SecurityConfig) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         minTLSVersion,
		ServerName:         host,
		InsecureSkipVerify: sec.InsecureSkipVerify,
	}

	if sec.CACertPath != "" {
		pem, err := os.ReadFile(sec.CACertPath)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindTransportTLS, err, "failed to read CA certificate").WithFile(sec.CACertPath)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, gwerrors.New(gwerrors.KindTransportTLS, "failed to parse CA certificate").WithFile(sec.CACertPath)
		}
		cfg.RootCAs = pool
	}

	if sec.TLSCertPath != "" && sec.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(sec.TLSCertPath, sec.TLSKeyPath)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindTransportTLS, err, "failed to load client certificate").WithFile(sec.TLSCertPath)
		}
		cfg.Certificates = []tls.Certificate{cert}
	} else if sec.ClientCertRequired {
		return nil, gwerrors.New(gwerrors.KindTransportTLS, "client_cert_required but tls_cert_path/tls_key_path not both set")
	}

	return cfg, nil
}
