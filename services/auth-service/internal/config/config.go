package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/taskdash-api/shared/database"
	"github.com/vasapolrittideah/taskdash-api/shared/discovery"
	"github.com/vasapolrittideah/taskdash-api/shared/logging"
	"github.com/vasapolrittideah/taskdash-api/shared/mailer"
	"github.com/vasapolrittideah/taskdash-api/shared/ratelimit"
)

const EnvProduction = "production"

// AuthServiceConfig is the complete runtime configuration of the auth service.
type AuthServiceConfig struct {
	Env  string `env:"APP_ENV"   envDefault:"development"`
	Name string `env:"APP_NAME"  envDefault:"auth-service"`

	HTTP        HTTPConfig
	Token       TokenConfig
	Cookie      CookieConfig
	Recognition RecognitionConfig
	Upload      UploadConfig
	Log         logging.Config
	Mongo       database.MongoConfig
	Consul      discovery.ConsulConfig
	RateLimit   ratelimit.Config
	Mailer      mailer.Config
}

// HTTPConfig configures the public HTTP listener and the gRPC health listener.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR"             envDefault:":8000"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR"`
	CORSOrigin      string        `env:"CORS_ORIGIN"           envDefault:"http://localhost:5173"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// TrustedProxies are addresses or CIDRs allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// TokenConfig configures access and refresh token signing.
type TokenConfig struct {
	AccessTokenSecret     string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_TOKEN_EXPIRY"  envDefault:"1h"`
	RefreshTokenSecret    string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	Issuer                string        `env:"TOKEN_ISSUER"         envDefault:"taskdash-auth"`
	Audience              string        `env:"TOKEN_AUDIENCE"       envDefault:"taskdash"`

	// RevokeOnReuse clears the stored refresh token when a superseded one is presented.
	RevokeOnReuse bool `env:"REVOKE_ON_REFRESH_REUSE" envDefault:"false"`
}

// CookieConfig configures the session cookies carrying the tokens.
type CookieConfig struct {
	SameSite   string `env:"COOKIE_SAMESITE"   envDefault:"lax"`
	Domain     string `env:"COOKIE_DOMAIN"`
	Persistent bool   `env:"COOKIE_PERSISTENT" envDefault:"false"`
}

// RecognitionConfig locates the face recognition service.
type RecognitionConfig struct {
	URL           string        `env:"RECOGNITION_URL"            envDefault:"http://localhost:5001"`
	ConsulService string        `env:"RECOGNITION_CONSUL_SERVICE"`
	Timeout       time.Duration `env:"RECOGNITION_TIMEOUT"        envDefault:"10s"`
}

// UploadConfig configures where captured face images wait before being relayed.
type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR"       envDefault:"uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
}

// Load parses the configuration from the environment and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c *AuthServiceConfig) Validate() error {
	var errs []error

	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.Token.AccessTokenExpiresIn <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRY must be positive"))
	}
	if c.Token.RefreshTokenExpiresIn <= c.Token.AccessTokenExpiresIn {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY must be longer than ACCESS_TOKEN_EXPIRY"))
	}
	if c.Recognition.Timeout <= 0 {
		errs = append(errs, errors.New("RECOGNITION_TIMEOUT must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Cookie.SameSiteMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Mailer.Enabled() {
		if err := c.Mailer.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in the production environment.
func (c *AuthServiceConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single host prefix.
func (c HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

// SameSiteMode converts the configured SameSite name to its http constant.
func (c CookieConfig) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid COOKIE_SAMESITE %q", c.SameSite)
	}
}
