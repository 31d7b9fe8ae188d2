package dbsink

import (
	"strings"
	"testing"
)

func TestParseConnectionStringBasic(t *testing.T) {
	p, err := ParseConnectionString("server=db1;database=mydb;user=sa;password=hunter2;port=1433")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Server != "db1" || p.Database != "mydb" || p.User != "sa" || p.Password != "hunter2" || p.Port != 1433 {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestParseConnectionStringCaseInsensitiveKeys(t *testing.T) {
	p, err := ParseConnectionString("SERVER=db1;DataBase=mydb;USER ID=sa")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Server != "db1" || p.Database != "mydb" || p.User != "sa" {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestTrustServerCertificateForcesEncryptFalse(t *testing.T) {
	p, err := ParseConnectionString("server=db1;trustServerCertificate=true")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Encrypt == nil || *p.Encrypt != false {
		t.Fatalf("expected encrypt forced to false, got %+v", p.Encrypt)
	}
}

func TestTrustServerCertificateDoesNotOverrideExplicitEncryptFalse(t *testing.T) {
	p, err := ParseConnectionString("server=db1;trustServerCertificate=true;encrypt=false")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Encrypt == nil || *p.Encrypt != false {
		t.Fatalf("expected encrypt false, got %+v", p.Encrypt)
	}
}

func TestMissingServerFails(t *testing.T) {
	if _, err := ParseConnectionString("database=mydb"); err == nil {
		t.Fatalf("expected error for missing server")
	}
}

func TestDSNIncludesTimeouts(t *testing.T) {
	p, err := ParseConnectionString("server=db1;database=mydb")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dsn := p.DSN()
	if dsn == "" {
		t.Fatalf("expected non-empty dsn")
	}
	if !strings.Contains(dsn, "request+timeout=50") || !strings.Contains(dsn, "connection+timeout=30") {
		t.Fatalf("expected 50s request and 30s connection timeouts in dsn, got %q", dsn)
	}
}
