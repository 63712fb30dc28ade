/* This package implements the existence memo and usage counters using
memcached.

Items are given an expiry based on their refresh deadline, with a
minimum duration so that they only go away once they would have been
refreshed anyway.

memcached will still evict things when under memory pressure. We can
recover from that: we'll just get a cache miss, and ask the CDN again.
*/
package memcached

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/xraynetwork/imgcdn/pkg/cache"
)

// MemcacheClient is a memcache client that gets its server list from SRV
// records, and periodically updates that ServerList.
type MemcacheClient struct {
	client     *memcache.Client
	serverList *memcache.ServerList
	hostname   string
	service    string
	logger     log.Logger

	quit chan struct{}
	wait sync.WaitGroup
}

// MemcacheConfig defines how a MemcacheClient should be constructed.
type MemcacheConfig struct {
	Host           string
	Service        string
	Timeout        time.Duration
	UpdateInterval time.Duration
	Logger         log.Logger
	MaxIdleConns   int
}

func newClient(config MemcacheConfig, servers *memcache.ServerList) *MemcacheClient {
	client := memcache.NewFromSelector(servers)
	client.Timeout = config.Timeout
	client.MaxIdleConns = config.MaxIdleConns
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	return &MemcacheClient{
		client:     client,
		serverList: servers,
		hostname:   config.Host,
		service:    config.Service,
		logger:     config.Logger,
		quit:       make(chan struct{}),
	}
}

func NewMemcacheClient(config MemcacheConfig) *MemcacheClient {
	c := newClient(config, &memcache.ServerList{})
	if err := c.updateFromSRVRecords(); err != nil {
		c.logger.Log("err", errors.Wrapf(err, "setting memcache servers to %q", config.Host))
	}
	c.wait.Add(1)
	go c.updateLoop(config.UpdateInterval, c.updateFromSRVRecords)
	return c
}

// NewFixedServerMemcacheClient does not use DNS, it accepts a static
// list of servers.
func NewFixedServerMemcacheClient(config MemcacheConfig, addresses ...string) (*MemcacheClient, error) {
	var servers memcache.ServerList
	if err := servers.SetServers(addresses...); err != nil {
		return nil, errors.Wrap(err, "setting memcache servers")
	}
	return newClient(config, &servers), nil
}

// GetKey gets the value and its refresh deadline from the cache.
func (c *MemcacheClient) GetKey(k cache.Keyer) ([]byte, time.Time, error) {
	cacheItem, err := c.client.Get(k.Key())
	if err == memcache.ErrCacheMiss {
		// Don't log on cache miss
		return nil, time.Time{}, cache.ErrNotCached
	} else if err != nil {
		c.logger.Log("err", errors.Wrap(err, "fetching from memcache"))
		return nil, time.Time{}, err
	}
	return cache.EndianGet(cacheItem.Value)
}

// SetKey sets the value and its refresh deadline at a key. NB the key
// expiry is set _longer_ than the deadline, to give us a grace period
// in which to refresh the value.
func (c *MemcacheClient) SetKey(k cache.Keyer, refreshDeadline time.Time, v []byte) error {
	expiry := cache.GracePeriodDeadline(refreshDeadline)
	if err := c.client.Set(&memcache.Item{
		Key:        k.Key(),
		Value:      cache.EndianCompose(cache.EndianPut(refreshDeadline), v),
		Expiration: int32(expiry.Seconds()),
	}); err != nil {
		c.logger.Log("err", errors.Wrap(err, "storing in memcache"))
		return err
	}
	return nil
}

// Incr bumps a counter, creating it at 1 if it does not exist yet. The
// memcache protocol has no cancellation, so ctx is only checked before
// the first round trip.
func (c *MemcacheClient) Incr(ctx context.Context, k cache.Keyer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := k.Key()
	_, err := c.client.Increment(key, 1)
	if err != memcache.ErrCacheMiss {
		return errors.Wrap(err, "incrementing in memcache")
	}
	err = c.client.Add(&memcache.Item{Key: key, Value: []byte("1")})
	if err == memcache.ErrNotStored {
		// Someone else created it in the meantime.
		_, err = c.client.Increment(key, 1)
	}
	return errors.Wrap(err, "creating counter in memcache")
}

// Stop the memcache client.
func (c *MemcacheClient) Stop() {
	close(c.quit)
	c.wait.Wait()
}

func (c *MemcacheClient) updateLoop(updateInterval time.Duration, update func() error) {
	defer c.wait.Done()
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := update(); err != nil {
				c.logger.Log("err", errors.Wrap(err, "updating memcache servers"))
			}
		case <-c.quit:
			return
		}
	}
}

// updateFromSRVRecords sets a memcache server list from SRV records. SRV
// priority & weight are ignored.
func (c *MemcacheClient) updateFromSRVRecords() error {
	_, addrs, err := net.LookupSRV(c.service, "tcp", c.hostname)
	if err != nil {
		return err
	}
	var servers []string
	for _, srv := range addrs {
		servers = append(servers, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
	}
	// ServerList deterministically maps keys to _index_ of the server list.
	// Since DNS returns records in different order each time, we sort to
	// guarantee best possible match between nodes.
	sort.Strings(servers)
	return c.serverList.SetServers(servers...)
}
