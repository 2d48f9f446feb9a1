package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func TestTOTPEngineVerifyCode(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	engine := NewTOTPEngine("Restomate").WithClock(func() time.Time { return at })

	secret, err := engine.GenerateSecret("chef@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}

	if !engine.VerifyCode(secret, code) {
		t.Fatal("expected current code to verify")
	}
	if !engine.VerifyCode(secret, " "+code+" ") {
		t.Fatal("expected whitespace-padded code to verify")
	}
	if engine.VerifyCode(secret, "000000") {
		t.Fatal("expected arbitrary code to fail")
	}
}

func TestTOTPEngineAcceptsAdjacentWindow(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	engine := NewTOTPEngine("Restomate").WithClock(func() time.Time { return at })

	secret, err := engine.GenerateSecret("chef@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	previous, err := totp.GenerateCodeCustom(secret, at.Add(-30*time.Second), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	if !engine.VerifyCode(secret, previous) {
		t.Fatal("expected previous-window code to verify with skew 1")
	}

	stale, err := totp.GenerateCodeCustom(secret, at.Add(-90*time.Second), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	if engine.VerifyCode(secret, stale) {
		t.Fatal("expected code three windows old to fail")
	}
}

func TestTOTPEngineProvisioningURI(t *testing.T) {
	engine := NewTOTPEngine("Restomate")

	uri := engine.ProvisioningURI("JBSWY3DPEHPK3PXP", "chef@example.com")
	if !strings.HasPrefix(uri, "otpauth://totp/Restomate:chef@example.com?") {
		t.Fatalf("unexpected URI prefix: %s", uri)
	}
	for _, fragment := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=Restomate", "digits=6", "period=30"} {
		if !strings.Contains(uri, fragment) {
			t.Errorf("URI missing %q: %s", fragment, uri)
		}
	}
}

func TestTOTPEngineGenerateBackupCodes(t *testing.T) {
	engine := NewTOTPEngine("Restomate")

	codes, err := engine.GenerateBackupCodes(10)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("generated %d codes, want 10", len(codes))
	}

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if len(code) != 8 {
			t.Errorf("code %q is not 8 characters", code)
		}
		if code != strings.ToUpper(code) {
			t.Errorf("code %q is not uppercase", code)
		}
		if _, dup := seen[code]; dup {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = struct{}{}
	}

	if _, err := engine.GenerateBackupCodes(0); err == nil {
		t.Fatal("expected error for non-positive count")
	}
}
