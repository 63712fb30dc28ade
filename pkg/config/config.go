// config is the package containing configuration for imgcdn, shared
// so it can be used by the server as well as imgcdnctl.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraynetwork/imgcdn/pkg/asset"
)

const (
	ConfigPath          = "/etc/imgcdn"
	ConfigName          = "imgcdn"
	ConfigType          = "yaml"
	EnvPrefix           = "IMGCDN"
	ImgcdnConfigVersion = "v1"
)

const (
	CacheBackendNone      = "none"
	CacheBackendMemcached = "memcached"
	CacheBackendRedis     = "redis"
)

type Config struct {
	// Only checked when a config file is in use. If it is not equal to
	// ImgcdnConfigVersion the file is considered invalid.
	ConfigVersion string `mapstructure:"imgcdnConfigVersion"`

	LogFormat     string `mapstructure:"logFormat"`
	Listen        string `mapstructure:"listen"`
	ListenMetrics string `mapstructure:"listenMetrics"`

	Networks    []string `mapstructure:"networks"`
	IPFSGateway string   `mapstructure:"ipfsGateway"`

	KoiosURL   []string `mapstructure:"koiosUrl"`
	KoiosToken string   `mapstructure:"koiosToken"`
	KoiosRPS   float64  `mapstructure:"koiosRps"`
	KoiosBurst int      `mapstructure:"koiosBurst"`
	KoiosTrace bool     `mapstructure:"koiosTrace"`

	RemoteRPS   float64 `mapstructure:"remoteRps"`
	RemoteBurst int     `mapstructure:"remoteBurst"`

	CloudflareAccountID   string `mapstructure:"cloudflareAccountId"`
	CloudflareAccountHash string `mapstructure:"cloudflareAccountHash"`
	CloudflareAPIToken    string `mapstructure:"cloudflareApiToken"`
	CloudflareAPIURL      string `mapstructure:"cloudflareApiUrl"`
	ImageDeliveryURL      string `mapstructure:"imageDeliveryUrl"`

	CacheBackend      string        `mapstructure:"cacheBackend"`
	MemcachedHostname string        `mapstructure:"memcachedHostname"`
	MemcachedService  string        `mapstructure:"memcachedService"`
	MemcachedTimeout  time.Duration `mapstructure:"memcachedTimeout"`
	RedisHostname     string        `mapstructure:"redisHostname"`
	RedisPort         int           `mapstructure:"redisPort"`
	RedisTimeout      time.Duration `mapstructure:"redisTimeout"`
	ExistsTTL         time.Duration `mapstructure:"existsTtl"`
	CountRequests     bool          `mapstructure:"countRequests"`
}

// IsValid checks the parts of the config that have no sensible
// default. fromFile says whether a config file was read.
func (c Config) IsValid(fromFile bool) error {
	if fromFile && c.ConfigVersion != ImgcdnConfigVersion {
		return fmt.Errorf("config file is expected to include `imgcdnConfigVersion: %s` to mark it as an imgcdn config", ImgcdnConfigVersion)
	}
	if c.CloudflareAccountID == "" || c.CloudflareAccountHash == "" || c.CloudflareAPIToken == "" {
		return fmt.Errorf("--cloudflare-account-id, --cloudflare-account-hash and --cloudflare-api-token are required")
	}
	switch c.CacheBackend {
	case CacheBackendNone, CacheBackendMemcached, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (one of {%s})", c.CacheBackend,
			strings.Join([]string{CacheBackendNone, CacheBackendMemcached, CacheBackendRedis}, ","))
	}
	if _, err := c.KoiosEndpoints(); err != nil {
		return err
	}
	return nil
}

// KoiosEndpoints returns the chain index base URL for each network,
// starting from the public endpoints and applying "network=url"
// overrides.
func (c Config) KoiosEndpoints() (map[asset.Network]string, error) {
	endpoints := map[asset.Network]string{}
	for n, u := range DefaultKoiosEndpoints {
		endpoints[n] = u
	}
	for _, override := range c.KoiosURL {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("koios URL %q is not of the form network=url", override)
		}
		endpoints[asset.Network(parts[0])] = strings.TrimRight(parts[1], "/")
	}
	return endpoints, nil
}

// Policy builds the serving policy from the config.
func (c Config) Policy() *Policy {
	p := DefaultPolicy()
	if len(c.Networks) > 0 {
		p.Networks = nil
		for _, n := range c.Networks {
			p.Networks = append(p.Networks, asset.Network(n))
		}
	}
	if c.IPFSGateway != "" {
		p.IPFSGateway = strings.TrimRight(c.IPFSGateway, "/")
	}
	return p
}
