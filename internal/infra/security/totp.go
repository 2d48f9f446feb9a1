package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPEngine generates and verifies time-based one-time passwords along with
// the single-use backup codes that accompany them.
type TOTPEngine struct {
	issuer string
	now    func() time.Time
}

// NewTOTPEngine constructs an engine that labels provisioning URIs with the
// supplied issuer.
func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock overrides the engine's time source. Intended for tests.
func (e *TOTPEngine) WithClock(now func() time.Time) *TOTPEngine {
	e.now = now
	return e
}

// GenerateSecret returns a fresh base32 TOTP secret.
func (e *TOTPEngine) GenerateSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app enrolls with.
func (e *TOTPEngine) ProvisioningURI(secret, accountName string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")

	label := url.PathEscape(e.issuer + ":" + accountName)
	return fmt.Sprintf("otpauth://totp/%s?%s", label, v.Encode())
}

// VerifyCode checks a six-digit code against the secret, tolerating one
// period of clock skew in either direction.
func (e *TOTPEngine) VerifyCode(secret, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes returns count distinct single-use recovery codes, each
// eight uppercase hex characters.
func (e *TOTPEngine) GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("backup code count must be positive")
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
