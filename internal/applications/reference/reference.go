// Package reference issues application reference numbers.
package reference

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"time"

	"portal/internal/applications/models"
	dErrors "portal/pkg/domain-errors"
)

const (
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength = 4
)

// Pattern matches every reference this package issues.
var Pattern = regexp.MustCompile(`^[A-Z]{2,4}-\d{6}-[A-Z0-9]{2,6}$`)

// Issuer builds {PREFIX}-{yyyyMM}-{SUFFIX} references. It is stateless;
// callers check the store for collisions before committing.
type Issuer struct {
	random io.Reader
}

type Option func(*Issuer)

// WithRandom replaces crypto/rand, for deterministic tests.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) {
		i.random = r
	}
}

func New(opts ...Option) *Issuer {
	i := &Issuer{random: rand.Reader}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns a fresh reference for a service that issues one.
func (i *Issuer) Issue(service models.ServiceName, now time.Time) (string, error) {
	entry, err := models.LookupService(string(service))
	if err != nil {
		return "", err
	}
	if !entry.IssuesReference {
		return "", dErrors.New(dErrors.CodeInvalidInput, entry.Title+" does not issue reference numbers")
	}
	suffix, err := i.suffix()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to generate reference number")
	}
	return fmt.Sprintf("%s-%s-%s", entry.Prefix, now.UTC().Format("200601"), suffix), nil
}

func (i *Issuer) suffix() (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return "", err
	}
	// 252 is the largest multiple of 36 below 256; rejecting bytes above it
	// keeps the distribution uniform.
	out := make([]byte, 0, suffixLength)
	for len(out) < suffixLength {
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == suffixLength {
				break
			}
		}
		if len(out) < suffixLength {
			if _, err := io.ReadFull(i.random, buf); err != nil {
				return "", err
			}
		}
	}
	return string(out), nil
}
