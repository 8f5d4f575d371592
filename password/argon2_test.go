package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// cheap is the smallest accepted work factor, used to keep tests fast.
var cheap = Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2(%+v): %v", cfg, err)
	}
	return h
}

func mustHash(t *testing.T, h *Argon2, pw string) string {
	t.Helper()
	enc, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash(%q): %v", pw, err)
	}
	return enc
}

func TestHashEncodesDefaultParameters(t *testing.T) {
	h := mustHasher(t, DefaultConfig())
	enc := mustHash(t, h, "P@ssw0rd-Ascii")

	if !strings.HasPrefix(enc, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("prefix: %s", enc)
	}
	if strings.Contains(enc, "P@ssw0rd") {
		t.Fatal("plaintext leaked into hash")
	}
	if !h.Verify("P@ssw0rd-Ascii", enc) {
		t.Fatal("own hash did not verify")
	}
}

func TestVerifyMatchesOnlyOriginal(t *testing.T) {
	h := mustHasher(t, cheap)
	inputs := []string{
		"",
		"a",
		"correct horse battery staple",
		"пароль-ünïcode-密码",
		strings.Repeat("x", 512),
		"trailing space ",
		"trailing space",
	}

	hashes := make([]string, len(inputs))
	for i, pw := range inputs {
		hashes[i] = mustHash(t, h, pw)
	}
	for i, enc := range hashes {
		for j, pw := range inputs {
			if got := h.Verify(pw, enc); got != (i == j) {
				t.Fatalf("Verify(%q, hash of %q) = %v", pw, inputs[i], got)
			}
		}
	}
}

func TestSaltMakesEachHashUnique(t *testing.T) {
	h := mustHasher(t, cheap)
	seen := map[string]bool{}
	for range 4 {
		enc := mustHash(t, h, "same-password")
		if seen[enc] {
			t.Fatalf("duplicate encoding %s", enc)
		}
		seen[enc] = true
		if !h.Verify("same-password", enc) {
			t.Fatal("salted hash did not verify")
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	current := mustHasher(t, Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32})

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"same", current.Config(), false},
		{"less memory", Config{Memory: 8 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}, true},
		{"fewer passes", Config{Memory: 16 * 1024, Time: 1, Parallelism: 2, SaltLength: 16, KeyLength: 32}, true},
		{"fewer lanes", Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}, true},
		{"other key length", Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 16}, true},
		{"stronger", Config{Memory: 32 * 1024, Time: 3, Parallelism: 2, SaltLength: 32, KeyLength: 32}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := mustHash(t, mustHasher(t, tc.cfg), "pw")
			got, err := current.NeedsUpgrade(enc)
			if err != nil {
				t.Fatalf("NeedsUpgrade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NeedsUpgrade = %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := current.NeedsUpgrade("$argon2id$v=19$garbage"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("garbage err = %v, want ErrMalformedHash", err)
	}
}

func TestVerifyRejectsCorruptEncodings(t *testing.T) {
	h := mustHasher(t, cheap)
	valid := mustHash(t, h, "pw")

	cases := map[string]string{
		"empty":          "",
		"not phc":        "not-a-phc-hash",
		"argon2i":        strings.Replace(valid, "$argon2id$", "$argon2i$", 1),
		"version 18":     strings.Replace(valid, "$v=19$", "$v=18$", 1),
		"truncated key":  valid[:len(valid)-10],
		"bad salt":       strings.Replace(valid, "t=1,p=1$", "t=1,p=1$!!!", 1),
		"huge memory":    strings.Replace(valid, "m=8192", "m=99999999", 1),
		"missing p":      strings.Replace(valid, "m=8192,t=1,p=1", "m=8192,t=1", 1),
		"reordered":      strings.Replace(valid, "m=8192,t=1,p=1", "t=1,m=8192,p=1", 1),
		"zero time":      strings.Replace(valid, "t=1,", "t=0,", 1),
		"huge time":      strings.Replace(valid, "t=1,", "t=4294967295,", 1),
		"leading zero":   strings.Replace(valid, "m=8192", "m=08192", 1),
		"extra field":    valid + "$extra",
		"bcrypt garbage": "$2b$10$not-really-bcrypt",
		"lanes overflow": strings.Replace(valid, "p=1$", "p=300$", 1),
	}
	for name, enc := range cases {
		t.Run(name, func(t *testing.T) {
			if h.Verify("pw", enc) {
				t.Fatalf("corrupt encoding verified: %q", enc)
			}
		})
	}
}

func TestLegacyBcrypt(t *testing.T) {
	h := mustHasher(t, cheap)
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if !h.Verify("legacy-password", string(legacy)) {
		t.Fatal("bcrypt hash did not verify")
	}
	if h.Verify("other-password", string(legacy)) {
		t.Fatal("wrong password verified against bcrypt")
	}
	if up, err := h.NeedsUpgrade(string(legacy)); err != nil || !up {
		t.Fatalf("NeedsUpgrade(bcrypt) = %v, %v; want true, nil", up, err)
	}
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory low":  func(c *Config) { c.Memory = 1024 },
		"memory high": func(c *Config) { c.Memory = 2 * 1024 * 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"time high":   func(c *Config) { c.Time = 65 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatalf("accepted %+v", cfg)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
