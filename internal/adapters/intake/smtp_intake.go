package intake

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/muting"
	"github.com/limitwatch/limitwatch/internal/parsers"
	"github.com/limitwatch/limitwatch/internal/utils"
	"go.uber.org/zap"
)

// SMTPIntake receives forwarded platform notifications over SMTP. Each
// accepted message is classified and the resulting alert stored; delivery is
// accepted even when classification fails so the upstream forwarder never
// retries a poison message.
type SMTPIntake struct {
	service         *core.ClassifierService
	sink            core.AlertSink
	muted           *muting.Checker
	textProcessor   *utils.TextProcessor
	logger          *zap.Logger
	listenAddr      string
	domain          string
	defaultUserID   string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	maxMessageBytes int
	server          *smtp.Server
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(
	service *core.ClassifierService,
	sink core.AlertSink,
	muted *muting.Checker,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	defaultUserID string,
	readTimeout time.Duration,
	writeTimeout time.Duration,
	maxMessageBytes int,
) *SMTPIntake {
	return &SMTPIntake{
		service:         service,
		sink:            sink,
		muted:           muted,
		textProcessor:   textProcessor,
		logger:          logger,
		listenAddr:      listenAddr,
		domain:          domain,
		defaultUserID:   defaultUserID,
		readTimeout:     readTimeout,
		writeTimeout:    writeTimeout,
		maxMessageBytes: maxMessageBytes,
	}
}

// Start starts the SMTP intake service
func (f *SMTPIntake) Start() error {
	f.server = smtp.NewServer(&smtpBackend{intake: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = f.domain
	f.server.ReadTimeout = f.readTimeout
	f.server.WriteTimeout = f.writeTimeout
	f.server.MaxMessageBytes = int64(f.maxMessageBytes)
	f.server.MaxRecipients = 10
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP intake starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP intake service
func (f *SMTPIntake) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessNotification runs one notification through the deterministic parsers
// and, when they decline, the learned classifier. The resulting alert is
// stored before it is returned.
func (f *SMTPIntake) ProcessNotification(ctx context.Context, userID string, n *core.Notification) (*core.ClassifiedAlert, error) {
	// The mute check sits ahead of the deterministic parsers too, so muting a
	// sender silences both classification paths
	if f.muted.IsMuted(n.Sender) {
		f.logger.Debug("Dropping notification from muted sender",
			zap.String("source_id", n.SourceID),
			zap.String("sender", n.Sender))
		return nil, nil
	}

	alert := parsers.Parse(n)
	if alert == nil {
		var err error
		alert, err = f.service.Classify(ctx, n)
		if err != nil {
			return nil, err
		}
	}
	if alert == nil {
		return nil, nil
	}

	if err := f.sink.SaveAlert(ctx, userID, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}
	return alert, nil
}

// userIDFromRecipient maps a recipient address to the owning user. A plus tag
// in the local part selects the user (alerts+u123@domain routes to u123);
// anything else falls through to the configured default.
func (f *SMTPIntake) userIDFromRecipient(recipient string) string {
	local, _, found := strings.Cut(recipient, "@")
	if !found {
		return f.defaultUserID
	}
	if _, tag, tagged := strings.Cut(local, "+"); tagged && tag != "" {
		return tag
	}
	return f.defaultUserID
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		intake:     b.intake,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for intake)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the message payload
func (s *smtpSession) Data(r io.Reader) error {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		s.intake.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}

	n, err := NotificationFromMessage(msg, s.sender, s.intake.textProcessor)
	if err != nil {
		s.intake.logger.Error("Failed to extract notification from message",
			zap.String("sender", s.sender),
			zap.Error(err))
		return err
	}

	userID := s.intake.defaultUserID
	if len(s.recipients) > 0 {
		userID = s.intake.userIDFromRecipient(s.recipients[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	alert, err := s.intake.ProcessNotification(ctx, userID, n)
	if err != nil {
		// Accept delivery anyway; the degraded alert path inside the
		// classifier already recorded what it could
		s.intake.logger.Error("Failed to process notification",
			zap.String("source_id", n.SourceID),
			zap.String("sender", n.Sender),
			zap.Error(err))
		return nil
	}

	if alert == nil {
		s.intake.logger.Debug("Notification discarded",
			zap.String("source_id", n.SourceID),
			zap.String("sender", n.Sender))
		return nil
	}

	s.intake.logger.Info("Processed notification",
		zap.String("source_id", n.SourceID),
		zap.String("user_id", userID),
		zap.String("platform", string(alert.Platform)),
		zap.String("category", string(alert.Category)),
		zap.String("provenance", string(alert.Provenance)))

	return nil
}

// NotificationFromMessage converts a parsed email into a notification. The
// envelope sender is a fallback when the From header is absent or malformed.
func NotificationFromMessage(msg *mail.Message, envelopeSender string, tp *utils.TextProcessor) (*core.Notification, error) {
	body, isHTML, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, err
	}
	if isHTML {
		body = tp.StripHTML(body)
	}

	sender := envelopeSender
	if from := msg.Header.Get("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			sender = addr.Address
		}
	}

	receivedAt := time.Now()
	if date, err := msg.Header.Date(); err == nil {
		receivedAt = date
	}

	sourceID := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if sourceID == "" {
		sourceID = fmt.Sprintf("intake-%d", receivedAt.UnixNano())
	}

	return &core.Notification{
		SourceID:   sourceID,
		Sender:     sender,
		Subject:    decodeEncodedHeader(msg.Header.Get("Subject")),
		Body:       tp.SanitizeUTF8(body),
		ReceivedAt: receivedAt,
	}, nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
