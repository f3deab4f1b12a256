package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const DefaultReconnectDelay = 5 * time.Second

// Invalidator drops cached results; no arguments means everything
type Invalidator interface {
	Invalidate(queries ...string) int
}

// NotificationWaiter blocks until a notification arrives on a listened channel
type NotificationWaiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Connector opens a connection listening on channel. release returns it.
type Connector func(ctx context.Context, channel string) (waiter NotificationWaiter, release func(), err error)

// PoolConnector listens on a dedicated connection acquired from pool
func PoolConnector(pool *pgxpool.Pool) Connector {
	return func(ctx context.Context, channel string) (NotificationWaiter, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			conn.Release()
			return nil, nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
		return conn.Conn(), conn.Release, nil
	}
}

// SyncListener clears the result cache whenever episode data is re-synced, in any process.
// Cache entries carry no content version, so the whole cache goes.
type SyncListener struct {
	connect        Connector
	channel        string
	cache          Invalidator
	log            logrus.FieldLogger
	reconnectDelay time.Duration
}

func NewSyncListener(connect Connector, channel string, cache Invalidator, log logrus.FieldLogger) *SyncListener {
	return &SyncListener{
		connect:        connect,
		channel:        channel,
		cache:          cache,
		log:            log.WithField("channel", channel),
		reconnectDelay: DefaultReconnectDelay,
	}
}

// Start listens until ctx is cancelled, reconnecting after connection failures
func (l *SyncListener) Start(ctx context.Context) {
	l.log.Info("sync listener started")
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.log.Info("sync listener stopped")
			return
		}
		l.log.WithError(err).Warn("sync listener disconnected, reconnecting")

		select {
		case <-ctx.Done():
			l.log.Info("sync listener stopped")
			return
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *SyncListener) listen(ctx context.Context) error {
	waiter, release, err := l.connect(ctx, l.channel)
	if err != nil {
		return err
	}
	defer release()

	for {
		n, err := waiter.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n == nil {
			return errors.New("connection closed")
		}
		removed := l.cache.Invalidate()
		l.log.WithFields(logrus.Fields{
			"payload": n.Payload,
			"removed": removed,
		}).Info("episodes synced, result cache cleared")
	}
}
