package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/taskhive/notify-client/internal/config"
)

// ApplicationName identifies archive sessions in pg_stat_activity.
const ApplicationName = "notify-client"

// BuildConnString builds a PostgreSQL connection URL from config.
// Credentials are escaped; an empty password is omitted so that
// .pgpass or trust auth can apply.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	u.RawQuery = q.Encode()

	return u.String()
}
