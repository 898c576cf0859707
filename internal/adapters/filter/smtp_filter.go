package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/mbox"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/whitelist"
)

// SMTPFilter is a content filter in the Postfix style: an MTA hands each
// message to it over SMTP, the filter scores it, prepends the verdict
// headers and re-injects the message upstream.
type SMTPFilter struct {
	classifier       core.Classifier
	logger           *zap.Logger
	listenAddr       string
	server           *smtp.Server
	threshold        float64
	categoryHeader   string
	scoreHeader      string
	rejectCategories map[string]struct{}
	whitelist        *whitelist.Checker
	upstreamAddr     string
	upstreamPort     int
	upstreamEnabled  bool
}

// NewSMTPFilter creates a new SMTP content filter. Messages whose verdict
// lands in rejectCategories are refused at DATA time instead of tagged;
// mail from whitelistedDomains is relayed without being scored at all.
func NewSMTPFilter(
	classifier core.Classifier,
	logger *zap.Logger,
	listenAddr string,
	threshold float64,
	categoryHeader string,
	scoreHeader string,
	rejectCategories []string,
	whitelistedDomains []string,
	upstreamAddr string,
	upstreamPort int,
	upstreamEnabled bool,
) *SMTPFilter {
	reject := make(map[string]struct{}, len(rejectCategories))
	for _, cat := range rejectCategories {
		reject[cat] = struct{}{}
	}
	return &SMTPFilter{
		classifier:       classifier,
		logger:           logger,
		listenAddr:       listenAddr,
		threshold:        threshold,
		categoryHeader:   categoryHeader,
		scoreHeader:      scoreHeader,
		rejectCategories: reject,
		whitelist:        whitelist.NewChecker(whitelistedDomains, logger),
		upstreamAddr:     upstreamAddr,
		upstreamPort:     upstreamPort,
		upstreamEnabled:  upstreamEnabled,
	}
}

// Start starts the SMTP filter service
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP filter service
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage classifies one parsed message and returns the verdict.
// This is mainly used for testing or direct API calls
func (f *SMTPFilter) ProcessMessage(ctx context.Context, doc *core.Document) (core.CategoryScore, error) {
	scores, err := f.classifier.Score(ctx, doc)
	if err != nil {
		return core.CategoryScore{}, err
	}
	return verdict(scores, f.threshold), nil
}

// verdict reduces a ranked score list to the category the message is filed
// under. Anything below the threshold, including an untrained model's empty
// list, files under UNK with the best probability seen.
func verdict(scores []core.CategoryScore, threshold float64) core.CategoryScore {
	if len(scores) == 0 {
		return core.CategoryScore{Category: core.CategoryUnknown, Prob: 0}
	}
	if scores[0].Prob < threshold {
		return core.CategoryScore{Category: core.CategoryUnknown, Prob: scores[0].Prob}
	}
	return scores[0]
}

// sendUpstream re-injects the tagged message into the MTA's return path
func (f *SMTPFilter) sendUpstream(sender string, recipients []string, messageData []byte) error {
	upstreamAddr := fmt.Sprintf("%s:%d", f.upstreamAddr, f.upstreamPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", upstreamAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect upstream: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			// Continue with other recipients even if one fails
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(messageData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
		// Not returning an error here as the message has already been sent
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for our filter)
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

// Data scores the message and hands it back tagged. The original bytes are
// never rewritten; the verdict headers are prepended, which keeps every
// MIME part and signature intact.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	if s.filter.whitelist.IsWhitelisted(s.sender) {
		s.filter.logger.Info("Sender is whitelisted, skipping classification",
			zap.String("sender", s.sender))
		if s.filter.upstreamEnabled {
			if err := s.filter.sendUpstream(s.sender, s.recipients, rawData); err != nil {
				s.filter.logger.Error("Failed to re-inject whitelisted message upstream",
					zap.Error(err),
					zap.String("sender", s.sender))
				return err
			}
		}
		return nil
	}

	doc, err := mbox.ParseMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	v, scoreErr := s.filter.ProcessMessage(ctx, doc)
	if scoreErr != nil {
		s.filter.logger.Error("Failed to score message",
			zap.Error(scoreErr),
			zap.String("sender", s.sender))
		// Fail open: an unscorable message passes through as UNK.
		v = core.CategoryScore{Category: core.CategoryUnknown, Prob: 0}
	}

	if _, reject := s.filter.rejectCategories[v.Category]; reject && scoreErr == nil {
		s.filter.logger.Info("Rejecting message",
			zap.String("sender", s.sender),
			zap.String("category", v.Category),
			zap.Float64("score", v.Prob))
		return fmt.Errorf("550 rejected: classified as %s (score: %.2f)", v.Category, v.Prob)
	}

	var tagged bytes.Buffer
	fmt.Fprintf(&tagged, "%s: %s\r\n", s.filter.categoryHeader, v.Category)
	fmt.Fprintf(&tagged, "%s: %.4f\r\n", s.filter.scoreHeader, v.Prob)
	if scoreErr != nil {
		fmt.Fprintf(&tagged, "X-Classifier-Error: %s\r\n", scoreErr.Error())
	}
	tagged.Write(rawData)

	if s.filter.upstreamEnabled {
		if err := s.filter.sendUpstream(s.sender, s.recipients, tagged.Bytes()); err != nil {
			s.filter.logger.Error("Failed to re-inject message upstream",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Upstream forwarding disabled, tagged message dropped")
	}

	s.filter.logger.Info("Processed message",
		zap.String("sender", s.sender),
		zap.String("category", v.Category),
		zap.Float64("score", v.Prob))

	return nil
}

// Logout handles SMTP logout (not needed for our filter)
func (s *smtpSession) Logout() error {
	return nil
}
