package crypto

import (
	"errors"
	"log/slog"
)

// ErrPepperMissing is returned by LoadPepper when no pepper value is configured.
var ErrPepperMissing = errors.New("tenant token pepper is not configured")

// Pepper is the process-wide secret concatenated with plaintext tokens before
// hashing. It is loaded once at startup and passed explicitly as a value into the
// crypto primitives in this package; it is never stored as ambient/global
// state so that callers remain explicit about the dependency.
type Pepper struct {
	value string
}

// NewPepper wraps a resolved pepper value. An empty value is accepted by this
// constructor; callers decide whether that is fatal (see LoadPepper).
func NewPepper(value string) Pepper {
	return Pepper{value: value}
}

func (p Pepper) String() string { return p.value }

func (p Pepper) empty() bool { return p.value == "" }

// LoadPepper validates a resolved pepper value according to the deployment
// environment. In production, an empty pepper is fatal (ErrPepperMissing). In
// non-production environments it is merely logged as a loud warning, since
// local development often runs without one.
func LoadPepper(value string, production bool) (Pepper, error) {
	p := NewPepper(value)
	if p.empty() {
		if production {
			return Pepper{}, ErrPepperMissing
		}
		slog.Warn("tenant token pepper is not set; refusing to run this way in production")
	}
	return p, nil
}
