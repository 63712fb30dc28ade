package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xraynetwork/imgcdn/pkg/asset"
	"github.com/xraynetwork/imgcdn/pkg/cache"
	"github.com/xraynetwork/imgcdn/pkg/cache/memcached"
	"github.com/xraynetwork/imgcdn/pkg/config"
	transport "github.com/xraynetwork/imgcdn/pkg/http"
	"github.com/xraynetwork/imgcdn/pkg/http/middleware"
	"github.com/xraynetwork/imgcdn/pkg/http/server"
	"github.com/xraynetwork/imgcdn/pkg/koios"
	"github.com/xraynetwork/imgcdn/pkg/pipeline"
	"github.com/xraynetwork/imgcdn/pkg/store"
	"github.com/xraynetwork/imgcdn/pkg/store/cloudflare"
)

var version = "unversioned"

const (
	// Remote images are fetched within the request; the caller's
	// connection bounds how long that may take.
	remoteTimeout   = 30 * time.Second
	shutdownTimeout = 10 * time.Second

	memcachedUpdateInterval = time.Minute
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  imgcdn serves resized images of chain assets through an image CDN.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	v := viper.New()
	defineConfigFlags(fs, v, func(err error) {
		fmt.Fprintf(os.Stderr, "error defining flags: %s\n", err)
		os.Exit(1)
	})
	var (
		configFile  = fs.String("config", "", "path to a YAML config file; when not given, "+config.ConfigPath+"/"+config.ConfigName+".yaml is read if present")
		versionFlag = fs.Bool("version", false, "get version number")
	)

	err := fs.Parse(os.Args[1:])
	switch {
	case err == pflag.ErrHelp:
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %s\n\nRun 'imgcdn --help' for usage.\n", err.Error())
		os.Exit(1)
	}

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, fromFile, err := loadConfig(v, *configFile)
	if err == nil {
		err = cfg.IsValid(fromFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	// Logger component.
	var logger log.Logger
	{
		switch cfg.LogFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		case "fmt":
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		default:
			fmt.Fprintf(os.Stderr, "unsupported log format %q; use one of {fmt,json}\n", cfg.LogFormat)
			os.Exit(1)
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)
	if fromFile {
		logger.Log("config", v.ConfigFileUsed())
	}

	policy := cfg.Policy()

	// Chain index component.
	var lookup asset.Lookup
	{
		logger := log.With(logger, "component", "koios")
		endpoints, err := cfg.KoiosEndpoints()
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		client, err := koios.New(koios.Config{
			Endpoints: endpoints,
			Token:     cfg.KoiosToken,
			Limiters: &middleware.RateLimiters{
				RPS:    cfg.KoiosRPS,
				Burst:  cfg.KoiosBurst,
				Logger: logger,
			},
			Trace:  cfg.KoiosTrace,
			Logger: logger,
		})
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		lookup = koios.Instrument(client)
	}

	// Cache component: remembers which images the CDN holds, and
	// counts requests.
	var (
		cacheClient cache.Client
		counter     cache.Counter
	)
	{
		logger := log.With(logger, "component", "cache")
		switch cfg.CacheBackend {
		case config.CacheBackendMemcached:
			mc := memcached.NewMemcacheClient(memcached.MemcacheConfig{
				Host:           cfg.MemcachedHostname,
				Service:        cfg.MemcachedService,
				Timeout:        cfg.MemcachedTimeout,
				UpdateInterval: memcachedUpdateInterval,
				Logger:         logger,
				MaxIdleConns:   cfg.RemoteBurst,
			})
			defer mc.Stop()
			cacheClient, counter = mc, mc
			logger.Log("backend", "memcached", "host", cfg.MemcachedHostname, "service", cfg.MemcachedService)
		case config.CacheBackendRedis:
			rc := cache.NewRedisClient(cache.RedisConfig{
				Host:     cfg.RedisHostname,
				Port:     cfg.RedisPort,
				Timeout:  cfg.RedisTimeout,
				MaxConns: cfg.RemoteBurst,
				Logger:   logger,
			})
			defer rc.Stop()
			cacheClient, counter = rc, rc
			logger.Log("backend", "redis", "host", cfg.RedisHostname, "port", cfg.RedisPort)
		default:
			logger.Log("backend", "none")
		}
		if cacheClient != nil {
			cacheClient = cache.InstrumentClient(cacheClient)
		}
		if counter != nil && cfg.CountRequests {
			counter = cache.InstrumentCounter(counter)
		} else {
			counter = nil
		}
	}

	// Image CDN component.
	var images store.Store
	{
		logger := log.With(logger, "component", "cdn")
		cf, err := cloudflare.New(cloudflare.Config{
			AccountID:   cfg.CloudflareAccountID,
			AccountHash: cfg.CloudflareAccountHash,
			APIToken:    cfg.CloudflareAPIToken,
			APIURL:      cfg.CloudflareAPIURL,
			DeliveryURL: cfg.ImageDeliveryURL,
			Logger:      logger,
		})
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		images = store.Instrument(cf)
		if cacheClient != nil {
			images = store.Memoize(images, cacheClient, cfg.ExistsTTL, logger)
		}
	}

	// Resolution pipeline.
	var resolver server.Resolver
	{
		remoteLimiters := &middleware.RateLimiters{
			RPS:    cfg.RemoteRPS,
			Burst:  cfg.RemoteBurst,
			Logger: log.With(logger, "component", "remote"),
		}
		resolver = &pipeline.Pipeline{
			Policy: policy,
			Lookup: lookup,
			Store:  images,
			Client: &http.Client{
				Transport: remoteLimiters.PerHost(http.DefaultTransport),
				Timeout:   remoteTimeout,
			},
			Counter: counter,
			Logger:  log.With(logger, "component", "pipeline"),
		}
	}

	// HTTP transport component.
	metricsHandler := promhttp.Handler()
	var servers []*http.Server
	{
		var inline http.Handler
		if cfg.ListenMetrics == "" {
			inline = metricsHandler
		}
		handler := server.NewHandler(resolver, policy, transport.NewRouter(), log.With(logger, "component", "server"), inline)
		servers = append(servers, &http.Server{Addr: cfg.Listen, Handler: handler})
		if cfg.ListenMetrics != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsHandler)
			servers = append(servers, &http.Server{Addr: cfg.ListenMetrics, Handler: mux})
		}
	}

	// Mechanical stuff.
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(c)
		select {
		case sig := <-c:
			return fmt.Errorf("%s", sig)
		case <-ctx.Done():
			return nil
		}
	})
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Log("addr", srv.Addr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrapf(err, "listening on %s", srv.Addr)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Log("exiting", g.Wait())
}

// loadConfig reads the config file, if there is one, and environment
// overrides into a Config. Flags given on the command line win over
// both. It reports whether a config file was read.
func loadConfig(v *viper.Viper, path string) (config.Config, bool, error) {
	var cfg config.Config

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(config.ConfigName)
		v.SetConfigType(config.ConfigType)
		v.AddConfigPath(config.ConfigPath)
	}
	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return cfg, false, errors.Wrap(err, "reading config file")
		}
		fromFile = false
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fromFile, errors.Wrap(err, "decoding config")
	}
	return cfg, fromFile, nil
}
