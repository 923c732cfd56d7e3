package workers

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"firecontest-backend/config"
	"firecontest-backend/utils/logger"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// Mail is one queued outgoing email.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// MailWorker queues notifications from request handlers and delivers them in
// the background at a bounded rate. A full queue drops the message.
type MailWorker struct {
	sender  Sender
	queue   chan Mail
	limiter *rate.Limiter
	counter *prometheus.CounterVec
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMailWorker creates a worker with room for queueSize pending messages.
// counter may be nil.
func NewMailWorker(sender Sender, queueSize int, perSecond float64, counter *prometheus.CounterVec) *MailWorker {
	if queueSize <= 0 {
		queueSize = 100
	}
	if perSecond <= 0 {
		perSecond = 2
	}
	return &MailWorker{
		sender:  sender,
		queue:   make(chan Mail, queueSize),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		counter: counter,
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
	}
}

// Notify enqueues an email without blocking.
func (w *MailWorker) Notify(to, subject, htmlBody string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	select {
	case w.queue <- Mail{To: to, Subject: subject, HTML: htmlBody}:
	default:
		w.count("dropped")
		logger.Warnf("[MAIL] queue full, dropping %q to %s", subject, to)
	}
}

func (w *MailWorker) Start(ctx context.Context) {
	logger.Infof("[MAIL] starting mail worker")
	go w.run(ctx)
}

// Done is closed once the worker has stopped.
func (w *MailWorker) Done() <-chan struct{} {
	return w.done
}

func (w *MailWorker) run(ctx context.Context) {
	defer w.once.Do(func() { close(w.done) })
	for {
		select {
		case m := <-w.queue:
			if err := w.limiter.Wait(ctx); err != nil {
				logger.Infof("[MAIL] stopped with %d queued", len(w.queue)+1)
				return
			}
			w.deliver(ctx, m)
		case <-ctx.Done():
			logger.Infof("[MAIL] stopped with %d queued", len(w.queue))
			return
		}
	}
}

func (w *MailWorker) deliver(ctx context.Context, m Mail) {
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, m); err != nil {
		w.count("failed")
		logger.Errorf("[MAIL] failed to send %q to %s: %v", m.Subject, m.To, err)
		return
	}
	w.count("sent")
	logger.Debugf("[MAIL] sent %q to %s", m.Subject, m.To)
}

func (w *MailWorker) count(result string) {
	if w.counter != nil {
		w.counter.WithLabelValues(result).Inc()
	}
}

// SMTPSender sends through an SMTP relay with a plain-text alternative.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:     cfg.User,
		fromName: cfg.FromName,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, s.fromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", PlainText(m.HTML))
	msg.AddAlternative("text/html", m.HTML)

	errc := make(chan error, 1)
	go func() { errc <- s.dialer.DialAndSend(msg) }()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender is used when SMTP is not configured; it only logs.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Mail) error {
	logger.Infof("[MAIL] smtp disabled, would send %q to %s", m.Subject, m.To)
	return nil
}

var (
	blockTags = regexp.MustCompile(`(?i)<\s*(br|/p|/h[1-6]|/li|/div)\s*/?>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// PlainText derives a readable text body from simple HTML email markup.
func PlainText(body string) string {
	text := blockTags.ReplaceAllString(body, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
