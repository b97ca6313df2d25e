package pkg

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type NatsConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

type NatsClient struct {
	conn *nats.Conn
}

func NewNatsClient(cfg NatsConfig, log *logrus.Logger) (*NatsClient, error) {
	opts := []nats.Option{
		nats.Name("groupchat"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsClient{conn: conn}, nil
}

func (c *NatsClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Close 先 flush 已缓冲的消息再断开
func (c *NatsClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
