package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func writeConfigFiles(t *testing.T, fs afero.Fs) {
	t.Helper()

	base := `
app_name: TreeQL
log_level: debug
database:
  connection_string: root:root@tcp(localhost:3306)/
  pool_size: 5
auth:
  secret: base-secret
vector:
  url: http://localhost:6333
`
	prod := `
production: true
log_format: json
auth:
  secret: prod-secret
`
	if err := afero.WriteFile(fs, "/conf/application.yaml", []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/conf/application-prod.yaml", []byte(prod), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadInConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFiles(t, fs)
	t.Setenv("YML_DIR", "/conf")
	t.Setenv("PROFILE", "")

	conf, err := ReadInConfigFS(fs)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	if conf.AppName != "TreeQL" || conf.LogLevel != "debug" {
		t.Fatalf("conf = %+v", conf)
	}
	if conf.DB.ConnString != "root:root@tcp(localhost:3306)/" {
		t.Fatalf("conn string = %q", conf.DB.ConnString)
	}
	if conf.DB.PoolSize != 5 {
		t.Fatalf("pool size = %d", conf.DB.PoolSize)
	}
	// Defaults survive.
	if conf.Auth.AccountTable != "treeql.account" {
		t.Fatalf("account table = %q", conf.Auth.AccountTable)
	}
	if conf.Auth.ExpiryHours != 24 {
		t.Fatalf("expiry hours = %d", conf.Auth.ExpiryHours)
	}
	if conf.hostPort() != "0.0.0.0:8080" {
		t.Fatalf("host port = %q", conf.hostPort())
	}
}

func TestReadInConfigProfileOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFiles(t, fs)
	t.Setenv("YML_DIR", "/conf")
	t.Setenv("PROFILE", "prod")

	conf, err := ReadInConfigFS(fs)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	if !conf.Production {
		t.Fatal("profile must enable production")
	}
	if conf.Auth.Secret != "prod-secret" {
		t.Fatalf("secret = %q, want profile override", conf.Auth.Secret)
	}
	// Base values not overridden by the profile survive.
	if conf.DB.PoolSize != 5 {
		t.Fatalf("pool size = %d", conf.DB.PoolSize)
	}
	if !conf.ShouldUseJSONLogs() {
		t.Fatal("prod profile with json format must log json")
	}
}

func TestReadInConfigMissingFile(t *testing.T) {
	t.Setenv("YML_DIR", "/nope")
	t.Setenv("PROFILE", "")
	if _, err := ReadInConfigFS(afero.NewMemMapFs()); err == nil {
		t.Fatal("missing application.yaml must error")
	}
}

func TestTokenExpiry(t *testing.T) {
	c := &Config{Auth: Auth{ExpiryHours: 12}}
	if c.TokenExpiry() != 12*time.Hour {
		t.Fatalf("expiry = %s", c.TokenExpiry())
	}
}
