package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
)

var ErrNoRecipient = errors.New("email: message has no recipient")

// Message is a rendered email ready to be handed to the SMTP transport
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// sendMailFunc matches smtp.SendMail so tests can capture outgoing mail
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromName     string
	fromEmail    string
	frontendURL  string
	sendTimeout  time.Duration
	sendMail     sendMailFunc
	now          func() time.Time
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromName:     cfg.FromName,
		fromEmail:    cfg.SMTPUser,
		frontendURL:  strings.TrimRight(cfg.FrontendURL, "/"),
		sendTimeout:  cfg.SendTimeout,
		sendMail:     smtp.SendMail,
		now:          time.Now,
	}
}

// Configured reports whether an SMTP host is set. Without one, Send only logs.
func (s *Service) Configured() bool {
	return s.smtpHost != ""
}

// SendVerificationEmail renders and sends the account verification link.
// It blocks until the SMTP server accepts the message, so callers can
// compensate on failure.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	link := fmt.Sprintf("%s/verify?token=%s", s.frontendURL, url.QueryEscape(token))

	msg, err := s.VerificationMessage(toEmail, name, link)
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	return s.Send(ctx, msg)
}

// Send delivers msg over SMTP. net/smtp has no context support, so the
// transport runs in its own goroutine and Send returns when ctx is done.
func (s *Service) Send(ctx context.Context, msg Message) error {
	logger := logging.GetLoggerFromContext(ctx)

	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	if !s.Configured() {
		logger.Warn("smtp not configured, dropping email", "to", msg.To, "subject", msg.Subject)
		return nil
	}

	raw, err := s.buildMIME(msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	var auth smtp.Auth
	if s.smtpUser != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	}
	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, s.fromEmail, []string{msg.To}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
			return fmt.Errorf("send email: %w", err)
		}
	case <-ctx.Done():
		logger.Error("email send timed out", "to", msg.To, "subject", msg.Subject, "error", ctx.Err())
		return fmt.Errorf("send email: %w", ctx.Err())
	}

	logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (s *Service) buildMIME(msg Message) ([]byte, error) {
	from := (&mail.Address{Name: s.fromName, Address: s.fromEmail}).String()
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parse recipient: %w", err)
	}

	boundary, err := newBoundary()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	if err := writePart(&buf, boundary, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(&buf, boundary, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) error {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("encode %s part: %w", contentType, err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("encode %s part: %w", contentType, err)
	}
	buf.WriteString("\r\n")
	return nil
}

func newBoundary() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate boundary: %w", err)
	}
	return hex.EncodeToString(b), nil
}
