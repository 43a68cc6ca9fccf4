package clients

import (
	"fmt"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSClient publishes pipeline events
type NATSClient struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *logrus.Logger
}

// NewNATSClient connects to the NATS server. With JetStream enabled publishes
// are acknowledged and deduplicated by message id.
func NewNATSClient(cfg config.NATSConfig, log *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("fishit-minter"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("⚠️ NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("🔌 NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	client := &NATSClient{conn: conn, log: log}
	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		client.js = js
	}

	log.WithFields(logrus.Fields{"url": cfg.URL, "jetstream": cfg.EnableJetStream}).Info("✅ NATS connected")
	return client, nil
}

// Publish sends data on subject. msgID is used for JetStream deduplication.
func (c *NATSClient) Publish(subject string, data []byte, msgID string) error {
	if c.js != nil {
		if _, err := c.js.Publish(subject, data, nats.MsgId(msgID)); err != nil {
			return fmt.Errorf("jetstream publish %s: %w", subject, err)
		}
		return nil
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection
func (c *NATSClient) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.log.WithError(err).Warn("⚠️ NATS drain failed")
		c.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}
