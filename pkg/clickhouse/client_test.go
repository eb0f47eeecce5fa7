package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_DSN(t *testing.T) {
	dsn := ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "onchain",
		User:        "reader",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 30 * time.Second,
		Readonly:    true,
	}.DSN()
	assert.Equal(t, "clickhouse://reader:p%40ss@ch:9000/onchain?dial_timeout=5s&max_execution_time=30&readonly=1", dsn)

	http := ClientConfig{Host: "ch", Port: 8123, Database: "d", User: "u", UseHTTP: true, MaxExecTime: 500 * time.Millisecond}.DSN()
	assert.Equal(t, "http://u:@ch:8123/d", http)
}

func TestClientConfig_Validate(t *testing.T) {
	cfg := defaultClientConfig()
	assert.EqualError(t, cfg.validate(), "host is required")

	WithHost("ch")(&cfg)
	require.NoError(t, cfg.validate())

	WithPort(70000)(&cfg)
	assert.Error(t, cfg.validate())

	WithPort(9000)(&cfg)
	WithMaxConnections(2, 5)(&cfg)
	assert.ErrorContains(t, cfg.validate(), "max idle")

	_, err := NewClient()
	assert.ErrorContains(t, err, "clickhouse config")
}

func TestClient_InitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := newClient(db, false)
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b").WillReturnError(errors.New("syntax"))
	err = c.InitSchema(ctx, []string{"CREATE TABLE a", "CREATE TABLE b", "CREATE TABLE c"})
	assert.ErrorContains(t, err, "statement 1")
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	require.NoError(t, c.Close())

	ro := newClient(nil, true)
	assert.ErrorContains(t, ro.InitSchema(ctx, []string{"CREATE TABLE a"}), "read-only")
	assert.NoError(t, ro.Close())
}
