package gemini

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.sr.ht/~adnano/go-gemini"
	"git.sr.ht/~adnano/go-gemini/certificate"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = time.Minute
)

// CertificateFunc returns the certificate to present for hostname.
type CertificateFunc func(hostname string) (*tls.Certificate, error)

// StaticCertificate loads a fixed certificate and key pair from disk.
func StaticCertificate(certFile, keyFile string) (CertificateFunc, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate pair: %w", err)
	}
	return func(string) (*tls.Certificate, error) {
		return &cert, nil
	}, nil
}

// SelfSignedCertificates serves certificates for hosts from dir, creating
// self-signed ones on first use. Empty hosts are ignored.
func SelfSignedCertificates(dir string, hosts ...string) (CertificateFunc, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	store := &certificate.Store{}
	registered := 0
	for _, host := range hosts {
		if host == "" {
			continue
		}
		store.Register(host)
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("no hostname to issue certificates for")
	}
	if err := store.Load(dir); err != nil {
		return nil, fmt.Errorf("failed to load certificates from %s: %w", dir, err)
	}

	slog.Info("[GEMINI] using self-signed certificates", "dir", dir, "hosts", hosts)
	return store.Get, nil
}

// NewServer creates a Gemini server for handler listening on addr.
func NewServer(addr string, handler gemini.Handler, certs CertificateFunc) *gemini.Server {
	return &gemini.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		GetCertificate: certs,
		ErrorLog:       slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	}
}
