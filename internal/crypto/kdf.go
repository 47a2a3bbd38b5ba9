package crypto

import (
	"time"

	sscrypt "github.com/elithrar/simple-scrypt"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/pushback/pushback/internal/errors"
)

const saltSize = 32

// Params are the scrypt parameters used to derive the artifact key from the
// password. They are stored in the header of every encrypted artifact.
type Params struct {
	N, R, P int
}

// DefaultParams are used when calibration is not possible.
var DefaultParams = Params{N: sscrypt.DefaultParams.N, R: sscrypt.DefaultParams.R, P: sscrypt.DefaultParams.P}

// upper bounds for parameters read from an artifact header, a corrupted
// header must not make us allocate gigabytes
const (
	maxN  = 1 << 24
	maxRP = 1 << 20
)

// Calibrate determines scrypt parameters which take about timeout on this
// machine and use at most memory MiB.
func Calibrate(timeout time.Duration, memory int) (Params, error) {
	p, err := sscrypt.Calibrate(timeout, memory, sscrypt.Params{
		N:       DefaultParams.N,
		R:       DefaultParams.R,
		P:       DefaultParams.P,
		SaltLen: saltSize,
		DKLen:   chacha20poly1305.KeySize,
	})
	if err != nil {
		return DefaultParams, errors.Wrap(err, "scrypt.Calibrate")
	}

	return Params{N: p.N, R: p.R, P: p.P}, nil
}

// Check returns an error if the parameters are not usable.
func (p Params) Check() error {
	if p.N > maxN || p.N&(p.N-1) != 0 || p.R*p.P > maxRP {
		return errors.Errorf("scrypt parameters N=%d r=%d p=%d out of range", p.N, p.R, p.P)
	}

	sp := sscrypt.Params{N: p.N, R: p.R, P: p.P, SaltLen: saltSize, DKLen: chacha20poly1305.KeySize}
	if err := sp.Check(); err != nil {
		return errors.Wrapf(err, "scrypt parameters N=%d r=%d p=%d", p.N, p.R, p.P)
	}
	return nil
}

// deriveKey derives the XChaCha20-Poly1305 key from password and salt.
func deriveKey(p Params, salt []byte, password string) ([]byte, error) {
	if len(salt) != saltSize {
		return nil, errors.Errorf("invalid salt length %d", len(salt))
	}

	if err := p.Check(); err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt.Key")
	}
	return key, nil
}
