// internal/mailbox/poller.go
package mailbox

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// ErrTimedOut is returned by Await when no qualifying message arrived in time.
var ErrTimedOut = errors.New("timed out waiting for verification email")

// Request describes one verification wait. When Recipient is set, messages
// addressed only to other accounts are ignored.
type Request struct {
	SenderDomain    string
	Recipient       string
	SubjectKeywords []string
	Timeout         time.Duration
	PollInterval    time.Duration
}

// Link is an extracted verification link and the message it came from.
type Link struct {
	URL        string
	MessageID  uint32
	Subject    string
	From       string
	ReceivedAt time.Time
}

// Poller waits for a verification email and pulls the link out of it. A
// message that yielded a link is never handed out again, so consecutive
// waits on a shared mailbox cannot pick up each other's mail.
type Poller struct {
	mailbox Mailbox
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	claimed map[uint32]bool
}

// NewPoller creates a poller over a mailbox. The mailbox is connected lazily.
func NewPoller(mb Mailbox, logger *zap.Logger) *Poller {
	return &Poller{
		mailbox: mb,
		logger:  logger.Named("mailbox_poller"),
		now:     time.Now,
		claimed: make(map[uint32]bool),
	}
}

func (p *Poller) isClaimed(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimed[id]
}

func (p *Poller) claim(id uint32) {
	p.mu.Lock()
	p.claimed[id] = true
	p.mu.Unlock()
}

// Await polls until a qualifying message yields a link, the timeout passes
// (ErrTimedOut), or ctx is cancelled (ctx.Err()).
func (p *Poller) Await(ctx context.Context, req Request) (Link, error) {
	if req.SenderDomain == "" {
		return Link{}, errors.New("sender domain is required")
	}
	if req.Timeout <= 0 {
		return Link{}, errors.New("timeout must be positive")
	}
	if req.PollInterval <= 0 {
		req.PollInterval = req.Timeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	connected := false
	defer func() {
		if connected {
			if err := p.mailbox.Disconnect(); err != nil {
				p.logger.Debug("Mailbox disconnect failed.", zap.Error(err))
			}
		}
	}()

	log := p.logger.With(zap.String("sender_domain", req.SenderDomain))
	log.Info("Waiting for verification email.", zap.Duration("timeout", req.Timeout))

	ticker := time.NewTicker(req.PollInterval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		if !connected {
			if err := p.mailbox.Connect(waitCtx); err != nil {
				log.Warn("Could not connect to mailbox, will retry.", zap.Int("attempt", attempt), zap.Error(err))
			} else {
				connected = true
			}
		}
		if connected {
			if link, ok := p.poll(waitCtx, req, log); ok {
				log.Info("Verification email received.", zap.String("subject", link.Subject))
				return link, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return Link{}, err
			}
			log.Warn("No verification email before timeout.", zap.Int("polls", attempt))
			return Link{}, ErrTimedOut
		case <-ticker.C:
		}
	}
}

// poll runs a single search and inspects the most recent qualifying message.
// Errors here are transient and only logged.
func (p *Poller) poll(ctx context.Context, req Request, log *zap.Logger) (Link, bool) {
	since := p.now().Add(-req.Timeout)
	ids, err := p.mailbox.Search(ctx, req.SenderDomain, since)
	if err != nil {
		log.Warn("Mailbox search failed.", zap.Error(err))
		return Link{}, false
	}
	if len(ids) == 0 {
		return Link{}, false
	}

	var candidates []Message
	for _, id := range ids {
		if p.isClaimed(id) {
			continue
		}
		msg, err := p.mailbox.Fetch(ctx, id)
		if err != nil {
			log.Warn("Mailbox fetch failed.", zap.Uint32("id", id), zap.Error(err))
			continue
		}
		if msg.ID == 0 {
			msg.ID = id
		}
		if !msg.Date.IsZero() && msg.Date.Before(since) {
			continue
		}
		if !senderMatches(msg.From, req.SenderDomain) {
			continue
		}
		if !addressedTo(msg.To, req.Recipient) {
			continue
		}
		candidates = append(candidates, msg)
	}
	if len(candidates) == 0 {
		return Link{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Date.Equal(candidates[j].Date) {
			return candidates[i].Date.After(candidates[j].Date)
		}
		return candidates[i].ID > candidates[j].ID
	})
	latest := candidates[0]

	if !subjectMatches(latest.Subject, req.SubjectKeywords) {
		log.Debug("Latest message subject does not match.", zap.String("subject", latest.Subject))
		return Link{}, false
	}
	url, ok := ExtractLink(latest.Body())
	if !ok {
		log.Debug("Latest message has no verification link.", zap.Uint32("id", latest.ID))
		return Link{}, false
	}
	p.claim(latest.ID)
	return Link{
		URL:        url,
		MessageID:  latest.ID,
		Subject:    latest.Subject,
		From:       latest.From,
		ReceivedAt: latest.Date,
	}, true
}

// addressedTo reports whether recipient is among to. Messages without any
// visible recipient (Bcc delivery) qualify.
func addressedTo(to []string, recipient string) bool {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || len(to) == 0 {
		return true
	}
	for _, addr := range to {
		if strings.EqualFold(strings.TrimSpace(addr), recipient) {
			return true
		}
	}
	return false
}

func subjectMatches(subject string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	subject = strings.ToLower(subject)
	for _, k := range keywords {
		if k != "" && strings.Contains(subject, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// senderMatches compares registrable domains, so mail.university.edu
// qualifies for university.edu.
func senderMatches(from, domain string) bool {
	host := from
	if at := strings.LastIndex(from, "@"); at >= 0 {
		host = from[at+1:]
	}
	host = strings.ToLower(strings.Trim(host, "<> "))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host == "" || domain == "" {
		return false
	}
	if host == domain || strings.HasSuffix(host, "."+domain) {
		return true
	}
	hostRoot, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	domainRoot, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return false
	}
	return hostRoot == domainRoot
}

