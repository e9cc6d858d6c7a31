package observer

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/core/series"
)

const CertificateObserverName = "certificate"

// CertificateObserver watches PEM certificate files for upcoming expiry.
// Days remaining are compared low-side: fewer days is worse.
type CertificateObserver struct {
	tracker
	cfg config.CertificateConfig

	// now is injectable for tests.
	now func() time.Time
}

func NewCertificateObserver(cfg config.CertificateConfig) *CertificateObserver {
	return &CertificateObserver{
		tracker: newTracker(CertificateObserverName, cfg.Enabled),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (o *CertificateObserver) Initialize() error { return nil }

func (o *CertificateObserver) Run(ctx context.Context) error {
	start := o.beginRun()
	err := o.observe(ctx)
	o.endRun(start, err)
	return err
}

func (o *CertificateObserver) observe(ctx context.Context) error {
	thresholds := series.Thresholds{Warning: o.cfg.WarningDays, Error: o.cfg.ErrorDays}

	for _, path := range o.cfg.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		cert, err := loadCertificate(path)
		if err != nil {
			// Unreadable file is a recoverable source failure; the check
			// resumes once the file is back.
			o.log.Warn("Certificate unreadable, skipping", "path", path, "error", err)
			continue
		}

		days := cert.NotAfter.Sub(o.now()).Hours() / 24
		src := domain.SourceID{Observer: o.name, Entity: path, Property: "expiry"}
		sev := series.EvaluateLow(days, thresholds)
		o.commit(src, domain.EntityNode, sev, days, expiryMessage(cert.Subject.CommonName, days, sev))
	}
	return nil
}

func expiryMessage(cn string, days float64, sev domain.Severity) string {
	if sev == domain.SeverityOk {
		return fmt.Sprintf("certificate %q expires in %.0f days", cn, days)
	}
	if days < 0 {
		return fmt.Sprintf("certificate %q expired %.0f days ago", cn, -days)
	}
	return fmt.Sprintf("certificate %q expires in %.0f days", cn, days)
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate PEM block in %s", path)
	}
	return x509.ParseCertificate(block.Bytes)
}
