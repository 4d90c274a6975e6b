package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/volunteer/core/factory"
	"github.com/kilianp07/volunteer/core/logger"
	coremon "github.com/kilianp07/volunteer/core/monitoring"
	"github.com/kilianp07/volunteer/core/notify"
	infralogger "github.com/kilianp07/volunteer/infra/logger"
)

var (
	// ErrNotConnected is returned when publishing while the broker link is down.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrQueueFull is returned when an announcement is dropped because the
	// publisher is behind.
	ErrQueueFull = errors.New("mqtt: publish queue full")
	// ErrPublishTimeout is reported when the broker does not acknowledge a
	// publish in time.
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// Config defines the connection parameters for the Paho MQTT notifier.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix is prepended to the category: <prefix>/<category>.
	TopicPrefix string      `json:"topic_prefix"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	// QueueSize bounds the announcements waiting for the publisher.
	QueueSize int `json:"queue_size"`
	// PublishTimeoutMS bounds the wait for one broker acknowledgment.
	PublishTimeoutMS int         `json:"publish_timeout_ms"`
	TLSConfig        *tls.Config `json:"-"`
}

// SetDefaults applies defaults for optional fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "volunteer-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "city/volunteers"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.LWTTopic == "" {
		c.LWTTopic = c.TopicPrefix + "/status"
		c.LWTPayload = "offline"
		c.LWTRetain = true
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.PublishTimeoutMS <= 0 {
		c.PublishTimeoutMS = 2000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Notifier publishes announcements as JSON on <prefix>/<category>.
// PostMessage only enqueues; a single goroutine publishes, so callers never
// wait on the broker.
type Notifier struct {
	cli         pahoClient
	cfg         Config
	logger      logger.Logger
	backoff     time.Duration
	timeout     time.Duration
	statusTopic string

	mu     sync.RWMutex
	closed bool
	queue  chan outgoing
	quit   chan struct{}
	done   chan struct{}
}

type outgoing struct {
	topic    string
	payload  []byte
	category notify.Category
	subject  string
}

// announcement is the wire format of a published message.
type announcement struct {
	MessageID   string `json:"message_id"`
	Category    string `json:"category"`
	Text        string `json:"text"`
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name"`
	Timestamp   int64  `json:"timestamp"`
}

// NewNotifier connects to the broker and announces itself on the status topic.
func NewNotifier(cfg Config) (*Notifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := infralogger.New("mqtt_notifier")
	n := &Notifier{
		cfg:         cfg,
		logger:      log,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:     time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
		statusTopic: cfg.TopicPrefix + "/status",
		queue:       make(chan outgoing, cfg.QueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		t := c.Publish(n.statusTopic, cfg.QoS, true, "online")
		if !t.WaitTimeout(n.timeout) {
			log.Warnf("status publish not acknowledged after %s", n.timeout)
		} else if t.Error() != nil {
			log.Errorf("status publish error: %v", t.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	n.cli = c
	go n.run()
	return n, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Topic returns the topic used for a category.
func (n *Notifier) Topic(c notify.Category) string {
	return n.cfg.TopicPrefix + "/" + string(c)
}

// PostMessage implements notify.Notifier. The announcement is queued for the
// publisher goroutine and dropped with ErrQueueFull when the queue is full.
func (n *Notifier) PostMessage(_ context.Context, msg notify.Message) error {
	if n.cli == nil || !n.cli.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(announcement{
		MessageID:   uuid.NewString(),
		Category:    string(msg.Category),
		Text:        msg.Text,
		Subject:     msg.Subject.String(),
		DisplayName: msg.DisplayName,
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	out := outgoing{
		topic:    n.Topic(msg.Category),
		payload:  payload,
		category: msg.Category,
		subject:  msg.Subject.String(),
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotConnected
	}
	select {
	case n.queue <- out:
		return nil
	default:
		n.logger.Warnf("dropping %s announcement for %s: queue full", msg.Category, out.subject)
		return ErrQueueFull
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for out := range n.queue {
		if !n.publish(out) {
			return
		}
	}
}

// publish sends out with exponential backoff between attempts. It returns
// false when the notifier is shutting down.
func (n *Notifier) publish(out outgoing) bool {
	var publishErr error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		token := n.cli.Publish(out.topic, n.cfg.QoS, n.cfg.Retain, out.payload)
		timer := time.NewTimer(n.timeout)
		select {
		case <-token.Done():
			publishErr = token.Error()
		case <-timer.C:
			publishErr = ErrPublishTimeout
		case <-n.quit:
			timer.Stop()
			return false
		}
		timer.Stop()
		if publishErr == nil {
			n.logger.Debugf("published %s to %s", out.category, out.topic)
			return true
		}
		n.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == n.cfg.MaxRetries {
			break
		}
		select {
		case <-n.quit:
			return false
		case <-time.After(n.backoff * time.Duration(1<<attempt)):
		}
	}
	coremon.CaptureException(publishErr, map[string]string{
		"module":   "mqtt",
		"category": string(out.category),
		"subject":  out.subject,
	})
	return true
}

// Disconnect stops accepting announcements, gives the publisher one publish
// timeout to drain the queue, then marks the notifier offline and closes the
// MQTT connection.
func (n *Notifier) Disconnect() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	if n.queue != nil {
		close(n.queue)
	}
	n.mu.Unlock()

	if n.done != nil {
		select {
		case <-n.done:
		case <-time.After(n.timeout):
			n.logger.Warnf("publisher did not drain within %s, discarding %d announcements", n.timeout, len(n.queue))
			close(n.quit)
			<-n.done
		}
	}
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Publish(n.statusTopic, n.cfg.QoS, true, "offline").WaitTimeout(n.timeout)
		n.cli.Disconnect(250)
	}
}

func init() {
	_ = notify.Register("mqtt", func(conf map[string]any) (notify.Notifier, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewNotifier(c)
	})
}
