package intake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/mikey/llm-phish-guard/internal/ports"
	"github.com/mikey/llm-phish-guard/internal/whitelist"
	"go.uber.org/zap"
)

// Analyzer performs one analysis; *core.AnalysisClient implements it
type Analyzer interface {
	Analyze(ctx context.Context, desc core.RequestDescriptor) (*core.AnalysisResult, error)
}

// Recorder keeps analyzed mail in the history; *core.HistoryStore implements it
type Recorder interface {
	Append(ctx context.Context, entry core.HistoryEntry)
}

// SMTPIntake is an SMTP content filter: every received message is analyzed
// as an email, tagged with verdict headers and optionally relayed onwards.
// Each message is analyzed independently of the interactive session, so
// concurrent deliveries never supersede each other.
type SMTPIntake struct {
	analyzer Analyzer
	recorder Recorder
	trusted  *whitelist.Checker
	cfg      config.SMTPConfig
	logger   *zap.Logger

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewSMTPIntake creates a new SMTP intake. recorder may be nil.
func NewSMTPIntake(analyzer Analyzer, recorder Recorder, cfg config.SMTPConfig, logger *zap.Logger) *SMTPIntake {
	if cfg.VerdictHeader == "" {
		cfg.VerdictHeader = "X-Phish-Verdict"
	}
	if cfg.ScoreHeader == "" {
		cfg.ScoreHeader = "X-Phish-Score"
	}
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	return &SMTPIntake{
		analyzer: analyzer,
		recorder: recorder,
		trusted:  whitelist.NewChecker(cfg.TrustedDomains, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Start starts the SMTP server in the background
func (f *SMTPIntake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	server := smtp.NewServer(&smtpBackend{intake: f})
	server.Addr = f.cfg.ListenAddress
	server.Domain = f.cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = f.cfg.MaxMessageBytes
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}
	f.server = server
	f.listener = ln

	f.logger.Info("SMTP intake starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (f *SMTPIntake) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Stop stops the SMTP server
func (f *SMTPIntake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.server == nil {
		return nil
	}
	f.logger.Info("SMTP intake stopping")
	err := f.server.Close()
	f.server = nil
	f.listener = nil
	return err
}

// process analyzes one raw message and returns it with verdict headers
// prepended. A non-nil error rejects the message.
func (f *SMTPIntake) process(sender string, recipients []string, raw []byte) ([]byte, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return nil, &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	content, err := renderMessage(msg)
	if err != nil {
		f.logger.Error("Failed to extract text content", zap.Error(err))
		return nil, err
	}

	senderDomain := "unknown"
	if parts := strings.Split(sender, "@"); len(parts) == 2 {
		senderDomain = parts[1]
	}

	var header bytes.Buffer
	if f.trusted.IsTrusted(sender) {
		f.logger.Info("Sender domain trusted, skipping analysis",
			zap.String("from", sender),
			zap.String("sender_domain", senderDomain))
		fmt.Fprintf(&header, "%s: trusted-sender\r\n", trustedHeader)
		header.Write(raw)
		return header.Bytes(), nil
	}

	result, analysisErr := f.analyze(content)
	if analysisErr != nil {
		// Analysis failures never block delivery
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", sender),
			zap.String("sender_domain", senderDomain))
		fmt.Fprintf(&header, "X-Phish-Analysis-Error: %s\r\n", sanitizeHeaderValue(analysisErr.Error()))
	} else {
		if result.Verdict == core.VerdictDangerous && f.cfg.RejectDangerous {
			f.logger.Info("Rejecting dangerous email",
				zap.String("from", sender),
				zap.String("sender_domain", senderDomain),
				zap.Int("score", result.OverallScore))
			return nil, &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 7, 1},
				Message:      fmt.Sprintf("Rejected as phishing (score: %d)", result.OverallScore),
			}
		}
		fmt.Fprintf(&header, "%s: %s\r\n", f.cfg.VerdictHeader, result.Verdict)
		fmt.Fprintf(&header, "%s: %d\r\n", f.cfg.ScoreHeader, result.OverallScore)

		f.logger.Info("Processed email",
			zap.String("from", sender),
			zap.String("sender_domain", senderDomain),
			zap.Int("recipients", len(recipients)),
			zap.String("verdict", string(result.Verdict)),
			zap.Int("score", result.OverallScore))
	}

	header.Write(raw)
	return header.Bytes(), nil
}

func (f *SMTPIntake) analyze(content string) (*core.AnalysisResult, error) {
	desc, err := core.BuildRequest(core.KindEmail, content, core.Options{
		Email: &core.EmailOptions{ExtractAllLinks: f.cfg.ExtractAllLinks},
	})
	if err != nil {
		return nil, err
	}

	result, err := f.analyzer.Analyze(context.Background(), desc)
	if err != nil {
		return nil, err
	}

	if f.recorder != nil {
		f.recorder.Append(context.Background(), core.HistoryEntry{
			ID:        uuid.NewString(),
			CreatedAt: time.Now(),
			Kind:      desc.Kind,
			Content:   desc.Content,
			Result:    *result,
		})
	}
	return result, nil
}

// relay sends the processed email to the downstream MTA
func (f *SMTPIntake) relay(sender string, recipients []string, data []byte) error {
	relayAddr := net.JoinHostPort(f.cfg.Relay.Address, fmt.Sprint(f.cfg.Relay.Port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
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
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

const trustedHeader = "X-Phish-Skipped"

func sanitizeHeaderValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{intake: b.intake}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	processed, err := s.intake.process(s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if !s.intake.cfg.Relay.Enabled {
		s.intake.logger.Debug("Relay disabled, message accepted without forwarding",
			zap.String("sender", s.sender))
		return nil
	}
	if err := s.intake.relay(s.sender, s.recipients, processed); err != nil {
		s.intake.logger.Error("Failed to relay email",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}

var _ ports.Intake = (*SMTPIntake)(nil)
