package dbsink

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ConnParams is a parsed SQL Server connection string, per SPEC_FULL.md
// §4.7 step 2. Keys are matched case-insensitively.
type ConnParams struct {
	Server                 string
	Port                   int // 0 means unset (driver default 1433)
	Database               string
	User                   string
	Password               string
	Encrypt                *bool // nil means unset
	TrustServerCertificate *bool
	AppName                string
}

// ParseConnectionString parses a semicolon-delimited "key=value;..."
// connection string with case-insensitive keys, the format operators
// write by hand in group documents.
func ParseConnectionString(s string) (ConnParams, error) {
	var p ConnParams
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return ConnParams{}, fmt.Errorf("dbsink: malformed connection string segment %q", part)
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "server", "data source", "addr", "address", "network address":
			p.Server = val
		case "port":
			n, err := strconv.Atoi(val)
			if err != nil {
				return ConnParams{}, fmt.Errorf("dbsink: invalid port %q: %w", val, err)
			}
			p.Port = n
		case "database", "initial catalog":
			p.Database = val
		case "user", "user id", "uid":
			p.User = val
		case "password", "pwd":
			p.Password = val
		case "encrypt":
			b, err := parseBool(val)
			if err != nil {
				return ConnParams{}, err
			}
			p.Encrypt = &b
		case "trustservercertificate", "trust server certificate":
			b, err := parseBool(val)
			if err != nil {
				return ConnParams{}, err
			}
			p.TrustServerCertificate = &b
		case "appname", "application name":
			p.AppName = val
		}
	}
	if p.Server == "" {
		return ConnParams{}, fmt.Errorf("dbsink: connection string has no server")
	}

	// Works around TLS-to-IP restrictions on intranet deployments.
	if p.TrustServerCertificate != nil && *p.TrustServerCertificate {
		if p.Encrypt == nil || *p.Encrypt {
			f := false
			p.Encrypt = &f
		}
	}
	return p, nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("dbsink: invalid boolean %q", s)
	}
	return b, nil
}

// DSN renders p as a sqlserver:// URL consumed by
// github.com/microsoft/go-mssqldb, with a 50s request timeout and 30s
// connection timeout per spec.md §4.7 step 2.
func (p ConnParams) DSN() string {
	u := &url.URL{Scheme: "sqlserver"}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	host := p.Server
	if p.Port > 0 {
		host = fmt.Sprintf("%s:%d", p.Server, p.Port)
	}
	u.Host = host

	q := url.Values{}
	if p.Database != "" {
		q.Set("database", p.Database)
	}
	if p.Encrypt != nil {
		q.Set("encrypt", strconv.FormatBool(*p.Encrypt))
	}
	if p.TrustServerCertificate != nil {
		q.Set("trustservercertificate", strconv.FormatBool(*p.TrustServerCertificate))
	}
	if p.AppName != "" {
		q.Set("app name", p.AppName)
	}
	q.Set("dial timeout", "30")
	q.Set("connection timeout", "30")
	q.Set("request timeout", "50")
	u.RawQuery = q.Encode()
	return u.String()
}
