package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"
)

// Subject kinds published per job
const (
	KindProgress = "progress"
	KindResult   = "result"
)

// Client is a thin JSON publisher over a NATS connection
type Client struct {
	nc     *nats.Conn
	logger arbor.ILogger
}

// Connect dials url and keeps reconnecting for the lifetime of the process
func Connect(url string, logger arbor.ILogger) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("swarmcrew"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connected")
	return &Client{nc: nc, logger: logger}, nil
}

// Close drains pending publishes and closes the connection
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// PublishJSON marshals v and publishes it on subject
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// Subject builds "<prefix>.<job_id>.<kind>". NATS token separators and
// wildcards in the job id are replaced so one job never fans out to another's subject.
func Subject(prefix, jobID, kind string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, jobID)
	if token == "" {
		token = "_"
	}
	return prefix + "." + token + "." + kind
}
