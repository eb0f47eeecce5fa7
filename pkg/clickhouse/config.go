package clickhouse

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds connection settings. Readonly sessions get readonly=1,
// which ClickHouse enforces server side; schema creation needs it off.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	UseHTTP         bool
	MaxExecTime     time.Duration
	Readonly        bool
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
		Readonly:        true,
	}
}

func (c ClientConfig) validate() error {
	switch {
	case c.Host == "":
		return errors.New("host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.Database == "":
		return errors.New("database is required")
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max idle connections (%d) exceed max open (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// DSN renders the config as a clickhouse-go DSN. max_execution_time is sent
// in whole seconds.
func (c ClientConfig) DSN() string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.UseHTTP {
		u.Scheme = "http"
	}

	q := url.Values{}
	if c.DialTimeout > 0 {
		q.Set("dial_timeout", c.DialTimeout.String())
	}
	if c.ReadTimeout > 0 {
		q.Set("read_timeout", c.ReadTimeout.String())
	}
	if secs := int(c.MaxExecTime / time.Second); secs > 0 {
		q.Set("max_execution_time", strconv.Itoa(secs))
	}
	if c.Readonly {
		q.Set("readonly", "1")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func WithHost(host string) ClientOption {
	return func(c *ClientConfig) { c.Host = host }
}

func WithPort(port int) ClientOption {
	return func(c *ClientConfig) { c.Port = port }
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) { c.Database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) { c.User, c.Password = user, password }
}

// WithMaxConnections sizes the database/sql pool.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) { c.MaxOpenConns, c.MaxIdleConns = maxOpen, maxIdle }
}

// WithTimeouts sets dial and read timeouts. The dial timeout also bounds
// the startup ping.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) { c.DialTimeout, c.ReadTimeout = dial, read }
}

// WithHTTP switches from the native protocol to HTTP (port 8123).
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithMaxExecutionTime caps server-side execution of every query.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}

func WithReadonly(ro bool) ClientOption {
	return func(c *ClientConfig) { c.Readonly = ro }
}
