// Package mqtt delivers planning messages to technicians over MQTT and
// receives their status reports.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fieldplan/auth"
	"github.com/kilianp07/fieldplan/core/model"
	coremon "github.com/kilianp07/fieldplan/core/monitoring"
	"github.com/kilianp07/fieldplan/core/notify"
	"github.com/kilianp07/fieldplan/infra/logger"
)

// DefaultTopicPrefix roots every technician topic.
const DefaultTopicPrefix = "fieldplan/technicians"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	// AuthMethod is username_password (default), tls, both or oauth2. With
	// oauth2 the access token is sent as the password on every connect.
	AuthMethod  string          `json:"auth_method"`
	OAuth       auth.Conf       `json:"oauth"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Broker) != "" }

// Validate checks the settings required to connect.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.ClientID == "" {
		return fmt.Errorf("mqtt: client_id is required when broker is set")
	}
	if c.AuthMethod == "oauth2" {
		if err := c.OAuth.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if c.MaxRetries < 0 || c.BackoffMS < 0 {
		return fmt.Errorf("mqtt: max_retries and backoff_ms must not be negative")
	}
	return nil
}

// StatusReport is sent by a technician device when work starts or ends.
type StatusReport struct {
	TechnicianID string `json:"technician_id"`
	AssignmentID string `json:"assignment_id"`
	// Status is "started" or "completed".
	Status string `json:"status"`
}

// StatusHandler receives decoded status reports.
type StatusHandler func(ctx context.Context, r StatusReport)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Notifier implements notify.Notifier on top of Eclipse Paho.
type Notifier struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	onStatus   StatusHandler
}

var _ notify.Notifier = (*Notifier)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewNotifier connects to the broker. When onStatus is not nil the
// notifier subscribes to every technician status topic and forwards the
// reports to it.
func NewNotifier(cfg Config, onStatus StatusHandler) (*Notifier, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_notifier")
	n := &Notifier{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		onStatus:   onStatus,
	}
	if n.prefix == "" {
		n.prefix = DefaultTopicPrefix
	}
	if n.maxRetries <= 0 {
		n.maxRetries = 3
	}
	if n.backoff <= 0 {
		n.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if n.onStatus == nil {
			return
		}
		if token := c.Subscribe(n.StatusTopic(), n.qosFor("status"), n.handleStatus); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
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
	return n, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.AuthMethod == "oauth2" {
		cred := auth.NewClientCred(cfg.OAuth)
		log := logger.New("mqtt_auth")
		opts.SetCredentialsProvider(func() (string, string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			tok, err := cred.Token(ctx)
			if err != nil {
				log.Errorf("oauth2 token: %v", err)
			}
			return cfg.Username, tok
		})
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

// AssignmentTopic is where assignment notices for the technician go.
func (n *Notifier) AssignmentTopic(technicianID string) string {
	return fmt.Sprintf("%s/%s/assignments", n.prefix, technicianID)
}

// ScheduleTopic holds the last published schedule of the technician.
func (n *Notifier) ScheduleTopic(technicianID string) string {
	return fmt.Sprintf("%s/%s/schedule", n.prefix, technicianID)
}

// StatusTopic is the wildcard subscription for status reports.
func (n *Notifier) StatusTopic() string {
	return n.prefix + "/+/status"
}

// NotifyAssignment publishes the notice on the technician assignment topic.
func (n *Notifier) NotifyAssignment(ctx context.Context, a notify.AssignmentNotice) error {
	return n.publish(ctx, n.AssignmentTopic(a.TechnicianID), n.qosFor("assignment"), false, a, a.TechnicianID)
}

// SendSchedule publishes the schedule as a retained message so that a
// device connecting later still receives it.
func (n *Notifier) SendSchedule(ctx context.Context, s model.Schedule) error {
	return n.publish(ctx, n.ScheduleTopic(s.TechnicianID), n.qosFor("schedule"), true, s, s.TechnicianID)
}

func (n *Notifier) publish(ctx context.Context, topic string, qos byte, retained bool, msg any, technicianID string) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var publishErr error
retry:
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			n.logger.Infof("published %d bytes to %s", len(payload), topic)
			return nil
		}
		n.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == n.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			break retry
		case <-time.After(n.backoff * time.Duration(1<<attempt)):
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "technician_id": technicianID, "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

func (n *Notifier) handleStatus(_ paho.Client, msg paho.Message) {
	var r StatusReport
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		n.logger.Errorf("failed to decode status report: %v", err)
		return
	}
	if r.TechnicianID == "" {
		r.TechnicianID = technicianFromTopic(n.prefix, msg.Topic())
	}
	if r.AssignmentID == "" {
		n.logger.Warnf("status report without assignment id on %s", msg.Topic())
		return
	}
	n.logger.Infof("status %s for assignment %s", r.Status, r.AssignmentID)
	n.onStatus(context.Background(), r)
}

func technicianFromTopic(prefix, topic string) string {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if i := strings.Index(rest, "/"); i > 0 {
		return rest[:i]
	}
	return ""
}

func (n *Notifier) qosFor(kind string) byte {
	if q, ok := n.qos[kind]; ok {
		return q
	}
	return 1
}

// Disconnect gracefully closes the MQTT connection.
func (n *Notifier) Disconnect() {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}
