package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xraynetwork/imgcdn/pkg/config"
	"github.com/xraynetwork/imgcdn/pkg/store/cloudflare"
)

const (
	defaultRemoteConnections = 10
	defaultExistsTTL         = 24 * time.Hour
)

// defineConfigFlags defines the flags that can also be set in
// a config file. These need special treatment, because some care must
// be taken to match them ("bind") with config file field names.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore, like
		// this: `mapstructure:"-"`
		mappedName := field.Name
		if namePart := strings.Split(field.Tag.Get("mapstructure"), ",")[0]; namePart != "" {
			if namePart == "-" {
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		return v.BindPFlag(mappedName, fs.Lookup(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP := func(fieldName, flagName, short, def, desc string) {
		fs.StringP(flagName, short, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringSlice := func(fieldName, flagName string, def []string, desc string) {
		fs.StringSlice(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineBool := func(fieldName, flagName string, def bool, desc string) {
		fs.Bool(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineString("LogFormat", "log-format", "fmt", "change the log format (one of {fmt,json})")
	defineStringP("Listen", "listen", "l", ":8080", "listen address where images (and /metrics, unless --listen-metrics is given) will be served")
	defineString("ListenMetrics", "listen-metrics", "", "listen address for /metrics endpoint")

	// what is served
	defineStringSlice("Networks", "network", []string{"mainnet", "preprod", "preview"}, "networks images are served for")
	defineString("IPFSGateway", "ipfs-gateway", config.DefaultPolicy().IPFSGateway, "base URL that ipfs:// image URIs are fetched through")

	// chain index
	defineStringSlice("KoiosURL", "koios-url", nil, "override the Koios API base URL of a network, given as network=url")
	defineString("KoiosToken", "koios-token", "", "bearer token for the Koios API")
	defineFloat64("KoiosRPS", "koios-rps", 10, "maximum Koios requests per second per host")
	defineInt("KoiosBurst", "koios-burst", defaultRemoteConnections, "maximum burst of Koios requests per host")
	defineBool("KoiosTrace", "koios-trace", false, "output trace of Koios requests to log")

	// origins images are fetched from
	defineFloat64("RemoteRPS", "remote-rps", 50, "maximum requests per second per image origin host")
	defineInt("RemoteBurst", "remote-burst", defaultRemoteConnections, "maximum burst of requests per image origin host")

	// image CDN
	defineString("CloudflareAccountID", "cloudflare-account-id", "", "Cloudflare account that holds the images")
	defineString("CloudflareAccountHash", "cloudflare-account-hash", "", "account hash used in image delivery URLs")
	defineString("CloudflareAPIToken", "cloudflare-api-token", "", "API token with Cloudflare Images edit permission")
	defineString("CloudflareAPIURL", "cloudflare-api-url", cloudflare.DefaultAPIURL, "Cloudflare API base URL")
	defineString("ImageDeliveryURL", "image-delivery-url", cloudflare.DefaultDeliveryURL, "base URL renditions are served from")

	// memo cache and request counters
	defineString("CacheBackend", "cache-backend", config.CacheBackendNone, fmt.Sprintf("where to remember which images are on the CDN (one of {%s})",
		strings.Join([]string{config.CacheBackendNone, config.CacheBackendMemcached, config.CacheBackendRedis}, ",")))
	defineString("MemcachedHostname", "memcached-hostname", "memcached", "hostname for memcached service.")
	defineString("MemcachedService", "memcached-service", "memcached", "SRV service used to discover memcache servers.")
	defineDuration("MemcachedTimeout", "memcached-timeout", time.Second, "maximum time to wait before giving up on memcached requests.")
	defineString("RedisHostname", "redis-hostname", "redis", "hostname for redis service.")
	defineInt("RedisPort", "redis-port", 6379, "redis service port.")
	defineDuration("RedisTimeout", "redis-timeout", time.Second, "maximum time to wait before giving up on redis requests.")
	defineDuration("ExistsTTL", "exists-ttl", defaultExistsTTL, "how long an image known to be on the CDN is not checked again")
	defineBool("CountRequests", "count-requests", false, "count requests per network and class in the cache backend")
}
