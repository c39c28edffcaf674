// Package tls generates throwaway server certificates for local
// development. Production deployments terminate TLS upstream.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

const (
	defaultOrganization = "Asset Plane Dev"
	defaultValidity     = 365 * 24 * time.Hour
)

// Options control certificate generation. Zero values fall back to a
// one-year certificate for the default dev organization.
type Options struct {
	Organization string
	Validity     time.Duration
}

// GenerateSelfSignedCert writes a fresh ECDSA P-256 certificate and key
// in PEM format, valid for the given hostnames and IPs, using the
// default options. Existing files are overwritten.
func GenerateSelfSignedCert(certPath, keyPath string, hosts []string) error {
	return GenerateSelfSignedCertWithOptions(certPath, keyPath, hosts, Options{})
}

// GenerateSelfSignedCertWithOptions is GenerateSelfSignedCert with an
// explicit organization and validity window.
func GenerateSelfSignedCertWithOptions(certPath, keyPath string, hosts []string, opts Options) error {
	if opts.Organization == "" {
		opts.Organization = defaultOrganization
	}
	if opts.Validity <= 0 {
		opts.Validity = defaultValidity
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	notBefore := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{Organization: []string{opts.Organization}},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(opts.Validity),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return err
	}
	if err := writePEM(certPath, "CERTIFICATE", derBytes); err != nil {
		return err
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	return writePEM(keyPath, "EC PRIVATE KEY", keyBytes)
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", blockType, err)
	}
	return f.Close()
}
