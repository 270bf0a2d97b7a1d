package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCoversAllExchanges(t *testing.T) {
	cfg := Default()
	for _, name := range ExchangeNames() {
		es, ok := cfg.Exchange(name)
		if !ok {
			t.Fatalf("missing default settings for %s", name)
		}
		if es.HTTPTimeout != 10*time.Second {
			t.Fatalf("%s timeout = %v", name, es.HTTPTimeout)
		}
	}
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	base := Default()
	derived := Apply(base,
		WithEnvironment(EnvDev),
		WithExchangeCredentials(ExchangeExmo, Credentials{APIKey: "k", APISecret: "s"}),
		WithExchangeBaseURL(ExchangeZB, "https://example.test"),
	)

	if derived.Environment != EnvDev {
		t.Fatalf("environment = %q", derived.Environment)
	}
	if es, _ := derived.Exchange(ExchangeExmo); !es.Credentials.Configured() {
		t.Fatal("credentials not applied")
	}
	if es, _ := derived.Exchange(ExchangeZB); es.BaseURL != "https://example.test" {
		t.Fatalf("base url = %q", es.BaseURL)
	}
	if es, _ := base.Exchange(ExchangeExmo); es.Credentials.Configured() {
		t.Fatal("base settings mutated")
	}
	if base.Environment != EnvProd {
		t.Fatalf("base environment = %q", base.Environment)
	}
}

func TestExchangeNormalizesName(t *testing.T) {
	cfg := Default()
	if _, ok := cfg.Exchange("  EXMO "); !ok {
		t.Fatal("normalized lookup failed")
	}
	if _, ok := cfg.Exchange("unknown"); ok {
		t.Fatal("unexpected hit for unknown exchange")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EXBRIDGE_ENV", "staging")
	t.Setenv("LBANK_API_KEY", "key-from-env")
	t.Setenv("LBANK_API_SECRET", "secret-from-env")
	t.Setenv("BITZ_PASSWORD", "tradepwd")
	t.Setenv("COINEX_HTTP_TIMEOUT", "30s")

	cfg := FromEnv()
	if cfg.Environment != EnvStaging {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	lbank, _ := cfg.Exchange(ExchangeLbank)
	if lbank.Credentials.APIKey != "key-from-env" || lbank.Credentials.APISecret != "secret-from-env" {
		t.Fatalf("lbank credentials = %+v", lbank.Credentials)
	}
	bitz, _ := cfg.Exchange(ExchangeBitz)
	if bitz.Credentials.Password != "tradepwd" {
		t.Fatalf("bitz password = %q", bitz.Credentials.Password)
	}
	coinex, _ := cfg.Exchange(ExchangeCoinex)
	if coinex.HTTPTimeout != 30*time.Second {
		t.Fatalf("coinex timeout = %v", coinex.HTTPTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `environment: dev
exchanges:
  exmo:
    base_url: https://api.exmo.test
    credentials:
      api_key: file-key
      api_secret: file-secret
    http_timeout: 15s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	exmo, ok := cfg.Exchange(ExchangeExmo)
	if !ok {
		t.Fatal("exmo settings missing")
	}
	if exmo.BaseURL != "https://api.exmo.test" {
		t.Fatalf("base url = %q", exmo.BaseURL)
	}
	if exmo.Credentials.APIKey != "file-key" {
		t.Fatalf("api key = %q", exmo.Credentials.APIKey)
	}
	if exmo.HTTPTimeout != 15*time.Second {
		t.Fatalf("timeout = %v", exmo.HTTPTimeout)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCredentialsConfigured(t *testing.T) {
	if (Credentials{APIKey: "k"}).Configured() {
		t.Fatal("key alone must not count as configured")
	}
	if !(Credentials{APIKey: "k", APISecret: "s"}).Configured() {
		t.Fatal("key+secret must count as configured")
	}
}
