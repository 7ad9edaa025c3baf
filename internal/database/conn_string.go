package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/eludris-client/internal/config"
)

// BuildConnString returns the archive database URL for cfg. The application
// name and connect timeout are carried as query parameters so they show up
// in pg_stat_activity and bound the initial dial.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	query := url.Values{"sslmode": {sslMode}}
	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}
	if secs := int(cfg.ConnectTimeout.Seconds()); secs > 0 {
		query.Set("connect_timeout", strconv.Itoa(secs))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}
