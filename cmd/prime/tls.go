package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var (
	// A CA file held no usable PEM certificates.
	errNoCACerts = errors.New("no PEM certificates found")
	// Only one of the certificate and key files was given.
	errIncompleteKeyPair = errors.New("certificate and key must be provided together")
)

// The PEM files named by the --cert, --key and --cacert flags. The same files
// configure the REST listener and the OTLP exporter connection.
type tlsFiles struct {
	certFile string
	keyFile  string
	cacerts  []string
}

// Reads the TLS file flags from viper.
func tlsFilesFromConfig() tlsFiles {
	return tlsFiles{
		certFile: viper.GetString(TLSCertFlagName),
		keyFile:  viper.GetString(TLSKeyFlagName),
		cacerts:  viper.GetStringSlice(CACertFlagName),
	}
}

func (f tlsFiles) hasKeyPair() bool {
	return f.certFile != "" && f.keyFile != ""
}

// Returns the system pool extended with every CA file, or nil if no CA files
// are configured.
func (f tlsFiles) caPool() (*x509.CertPool, error) {
	if len(f.cacerts) == 0 {
		return nil, nil
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("failed to load system cert pool: %w", err)
	}
	for _, cacert := range f.cacerts {
		pem, err := os.ReadFile(cacert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", cacert, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to add CA file %s: %w", cacert, errNoCACerts)
		}
	}
	return pool, nil
}

// Returns a TLS 1.2+ config carrying the key pair, if one is configured.
func (f tlsFiles) baseConfig() (*tls.Config, error) {
	if (f.certFile == "") != (f.keyFile == "") {
		return nil, fmt.Errorf("%w: cert %q, key %q", errIncompleteKeyPair, f.certFile, f.keyFile)
	}
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if f.hasKeyPair() {
		cert, err := tls.LoadX509KeyPair(f.certFile, f.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate %s and key %s: %w", f.certFile, f.keyFile, err)
		}
		config.Certificates = []tls.Certificate{cert}
	}
	return config, nil
}

// Returns the REST listener TLS config, or nil when no key pair is set and the
// service should listen in plain text. CA files, when given, verify optional
// client certificates.
func (f tlsFiles) serverConfig() (*tls.Config, error) {
	logger := logger.V(1).WithValues(TLSCertFlagName, f.certFile, TLSKeyFlagName, f.keyFile, CACertFlagName, f.cacerts)
	if f.certFile == "" && f.keyFile == "" {
		logger.V(0).Info("Certificate and key are not set; REST service will not use TLS")
		return nil, nil
	}
	config, err := f.baseConfig()
	if err != nil {
		return nil, err
	}
	clientCAs, err := f.caPool()
	if err != nil {
		return nil, err
	}
	if clientCAs != nil {
		config.ClientCAs = clientCAs
		config.ClientAuth = tls.VerifyClientCertIfGiven
	}
	logger.V(1).Info("REST service TLS configured", "clientCAs", clientCAs != nil)
	return config, nil
}

// Returns the TLS config for dialing a collector. The key pair, when set, is
// presented as a client certificate; CA files replace the default roots and
// authority overrides the verified server name.
func (f tlsFiles) clientConfig(authority string) (*tls.Config, error) {
	config, err := f.baseConfig()
	if err != nil {
		return nil, err
	}
	rootCAs, err := f.caPool()
	if err != nil {
		return nil, err
	}
	config.RootCAs = rootCAs
	if authority != "" {
		config.ServerName = authority
	}
	return config, nil
}
