package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// DefaultSubject is the subject artifact events are published on.
const DefaultSubject = "assetbuilder.artifacts"

// Publisher sends a message and records the latest bundle per key.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PutLatest(ctx context.Context, key string, url string) error
}

// NATSConfig configures the JetStream connection.
type NATSConfig struct {
	URL     string
	Subject string
	// Stream is created when missing so publishes are acknowledged.
	Stream string
	// KVBucket holds the latest bundle URL per group and asset type.
	KVBucket string
}

// NATSClient manages the NATS connection used to publish artifact events.
type NATSClient struct {
	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue
}

// NewNATSClient connects and prepares the stream and KV bucket.
func NewNATSClient(ctx context.Context, cfg NATSConfig) (*NATSClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("assetbuilder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{conn: conn, js: js}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.Stream != "" {
		_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
		}
	}

	if cfg.KVBucket != "" {
		kv, err := js.KeyValue(ctx, cfg.KVBucket)
		if err != nil {
			kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:      cfg.KVBucket,
				Description: "Latest pipeline bundle per group and asset type",
				History:     1,
			})
		}
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize KV bucket: %w", err)
		}
		client.kv = kv
	}

	slog.Info("NATS client initialized for artifact notifications",
		logfields.URL(cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.String("kv_bucket", cfg.KVBucket))

	return client, nil
}

// Publish implements Publisher.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PutLatest implements Publisher. Without a KV bucket it does nothing.
func (c *NATSClient) PutLatest(ctx context.Context, key, url string) error {
	if c.kv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.kv.PutString(ctx, key, url); err != nil {
		return fmt.Errorf("failed to put latest bundle: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// NATSNotifier publishes an ArtifactEvent for every built artifact.
type NATSNotifier struct {
	Publisher Publisher
	Subject   string
	Scope     Scope
}

// Notify implements pipeline.Notifier.
func (n NATSNotifier) Notify(ctx context.Context, a pipeline.Artifact) error {
	ev := NewEvent(n.Scope, a)
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := n.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	if err := n.Publisher.Publish(ctx, subject, data); err != nil {
		return err
	}

	slog.Debug("Published artifact event", logfields.URL(a.URL), logfields.Hash(a.Hash), logfields.Group(n.Scope.Group))
	return n.Publisher.PutLatest(ctx, LatestKey(n.Scope.Group, a.Filename), a.URL)
}

// LatestKey is the KV key for the newest bundle of a group and asset type.
func LatestKey(group, filename string) string {
	if group == "" {
		group = "default"
	}
	return group + "." + strings.TrimPrefix(path.Ext(filename), ".")
}
