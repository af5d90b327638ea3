package redis

import (
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ErrNil is returned by the reply helpers when the key does not exist.
var ErrNil = redis.ErrNil

// Client is a thin wrapper around a redigo connection pool.
type Client struct {
	pool *redis.Pool
}

// NewClient creates a pooled client for the redis instance at addr and checks
// that it is reachable.
func NewClient(addr string) (*Client, error) {
	pool := &redis.Pool{
		MaxIdle:     10,
		MaxActive:   0,
		IdleTimeout: 300 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}

	c := &Client{pool: pool}
	if _, err := c.Do("PING"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return c, nil
}

// Do runs a single command on a connection borrowed from the pool.
func (c *Client) Do(commandName string, args ...interface{}) (interface{}, error) {
	conn := c.pool.Get()
	defer conn.Close()
	return conn.Do(commandName, args...)
}

// String converts a command reply to a string.
func String(reply interface{}, err error) (string, error) {
	return redis.String(reply, err)
}

// Close releases the pool's connections.
func (c *Client) Close() error {
	return c.pool.Close()
}
