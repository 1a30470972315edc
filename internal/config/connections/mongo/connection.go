package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type ConnectionInfo struct {
	Scheme     string
	User       string
	Password   string
	Host       string
	Port       string
	DB         string
	AuthSource string

	// MaxPoolSize caps driver connections; 0 keeps the driver default.
	MaxPoolSize uint64
	// PingTimeout bounds the startup reachability check.
	PingTimeout time.Duration
}

type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewConnection connects and verifies the primary is reachable. The log
// writers treat the database as append-only, so no schema setup happens here.
func NewConnection(ctx context.Context, info ConnectionInfo) (*Mongo, error) {
	scheme := info.Scheme
	if scheme == "" {
		scheme = "mongodb"
	}

	auth := ""
	if info.User != "" {
		auth = info.User
		if info.Password != "" {
			auth += ":" + info.Password
		}
		auth += "@"
	}

	host := info.Host
	if info.Port != "" {
		host += ":" + info.Port
	}

	query := ""
	if info.AuthSource != "" {
		query = "?authSource=" + info.AuthSource
	}

	uri := fmt.Sprintf("%s://%s%s/%s%s", scheme, auth, host, info.DB, query)

	opts := options.Client().ApplyURI(uri)
	if info.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(info.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	timeout := info.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	m := &Mongo{Client: client, Database: client.Database(info.DB)}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := m.Ping(pingCtx); err != nil {
		return nil, err
	}
	return m, nil
}

// Ping checks that the primary answers; used at startup and by health checks.
func (m *Mongo) Ping(ctx context.Context) error {
	if m.Client == nil {
		return mongo.ErrClientDisconnected
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client != nil {
		return m.Client.Disconnect(ctx)
	}
	return nil
}
