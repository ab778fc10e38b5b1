package identity

import (
	"strings"
	"testing"
	"time"
)

func rfcManager(algorithm string) *totpManager {
	return newTOTPManager(TOTPConfig{
		Issuer:    "identity",
		Digits:    8,
		Period:    30,
		Algorithm: algorithm,
		Skew:      0,
	})
}

func TestTOTPVerifyRFCVectorsSHA1(t *testing.T) {
	m := rfcManager("SHA1")
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA1 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA256(t *testing.T) {
	m := rfcManager("SHA256")
	secret := b32.EncodeToString([]byte("12345678901234567890123456789012"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "46119246"},
		{1111111109, "68084774"},
		{1111111111, "67062674"},
		{1234567890, "91819424"},
		{2000000000, "90698825"},
		{20000000000, "77737706"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA256 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA512(t *testing.T) {
	m := rfcManager("SHA512")
	secret := b32.EncodeToString([]byte("1234567890123456789012345678901234567890123456789012345678901234"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "90693936"},
		{1111111109, "25091201"},
		{1111111111, "99943326"},
		{1234567890, "93441116"},
		{2000000000, "38618901"},
		{20000000000, "47863826"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA512 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPDriftWindowAcceptsAdjacentSteps(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "identity",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      2,
	})
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	now := time.Unix(1234567890, 0)

	for _, offset := range []int64{-2, -1, 0, 1, 2} {
		code, err := hotpCode([]byte("12345678901234567890"), now.Unix()/30+offset, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil || !ok {
			t.Fatalf("expected code at offset %d accepted, ok=%v err=%v", offset, ok, err)
		}
	}

	outside, err := hotpCode([]byte("12345678901234567890"), now.Unix()/30+3, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	if ok, _ := m.VerifyCode(secret, outside, now); ok {
		t.Fatal("expected code outside the skew window to be rejected")
	}
}

func TestTOTPWrongLengthRejected(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "identity",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      2,
	})
	secret := b32.EncodeToString([]byte("12345678901234567890"))

	for _, code := range []string{"12345678", "12345", "abcdef", ""} {
		ok, err := m.VerifyCode(secret, code, time.Now())
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", code, err)
		}
		if ok {
			t.Fatalf("expected %q rejected", code)
		}
	}
}

func TestTOTPProvisionURI(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	uri := m.ProvisionURI(secret, "alice@example.com")
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("expected otpauth uri, got %s", uri)
	}
	if !strings.Contains(uri, "secret="+secret) {
		t.Fatalf("expected secret in uri, got %s", uri)
	}
	if !strings.Contains(uri, "digits=6") || !strings.Contains(uri, "period=30") {
		t.Fatalf("expected verification parameters in uri, got %s", uri)
	}
}
