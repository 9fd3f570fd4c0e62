package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/factory"
	"github.com/vibast-solutions/ms-go-3ds-gateway/config"
)

// fallbackColrefPrefix labels session references minted locally after the
// collection deadline. The provider may reject them at the auth step.
const fallbackColrefPrefix = "fallback-"

var sessionRefPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// maxRelayedContent caps how much relayed frame content a single waiter
// buffers for the scanner. The session reference appears early in the
// relayed frames; anything past the cap is dropped.
const maxRelayedContent = 64 << 10

// DDCCollector recovers the provider-issued session reference for one
// attempt. Wait races three independent signals and takes the first to
// fire: the browser completion message, a periodic scan of relayed frame
// content, and the wall-clock deadline.
//
// The relay endpoint feeding Deliver/AppendContent is reachable by the
// cardholder browser, so entries that never see a matching Wait are
// evicted once they go stale instead of being retained for the life of
// the process.
type DDCCollector struct {
	mu      sync.Mutex
	waiters map[string]*ddcWaiter

	deadline     time.Duration
	scanInterval time.Duration
	retention    time.Duration
	logger       logrus.FieldLogger
}

type ddcWaiter struct {
	colref   chan string
	lastSeen time.Time

	mu      sync.Mutex
	content strings.Builder
}

func NewDDCCollector(cfg config.DDCConfig) *DDCCollector {
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 6 * time.Second
	}
	scanInterval := cfg.ScanInterval
	if scanInterval <= 0 {
		scanInterval = 500 * time.Millisecond
	}
	return &DDCCollector{
		waiters:      map[string]*ddcWaiter{},
		deadline:     deadline,
		scanInterval: scanInterval,
		retention:    2 * deadline,
		logger:       factory.NewModuleLogger("ddc-collector"),
	}
}

// Deliver hands a session reference from the browser relay to the attempt
// waiting on refid. Safe to call before Wait; the value is buffered.
func (c *DDCCollector) Deliver(refid, colref string) {
	colref = strings.TrimSpace(colref)
	if refid == "" || colref == "" {
		return
	}
	w := c.waiter(refid)
	select {
	case w.colref <- colref:
	default:
	}
}

// AppendContent buffers relayed frame content for the periodic scan,
// up to maxRelayedContent per waiter.
func (c *DDCCollector) AppendContent(refid, content string) {
	if refid == "" || content == "" {
		return
	}
	w := c.waiter(refid)
	w.mu.Lock()
	if remaining := maxRelayedContent - w.content.Len(); remaining > 0 {
		if len(content) > remaining {
			content = content[:remaining]
		}
		w.content.WriteString(content)
		w.content.WriteString("\n")
	}
	w.mu.Unlock()
}

// Wait blocks until a session reference is available or the deadline fires,
// whichever comes first. On deadline a fallback colref is synthesized and
// the flow proceeds; the result is marked so downstream declines can be
// attributed to it.
func (c *DDCCollector) Wait(ctx context.Context, refid string) (*entity.DDCResult, error) {
	w := c.waiter(refid)
	defer c.release(refid)

	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.deadline)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case colref := <-w.colref:
			return &entity.DDCResult{Colref: colref, Refid: refid}, nil
		case <-ticker.C:
			if match := w.scan(); match != "" {
				return &entity.DDCResult{Colref: match, Refid: refid}, nil
			}
		case <-deadline.C:
			colref := fallbackColrefPrefix + uuid.NewString()
			c.logger.WithField("refid", refid).Warn("no session reference before deadline, synthesizing fallback colref")
			return &entity.DDCResult{Colref: colref, Refid: refid, Synthesized: true}, nil
		}
	}
}

func (w *ddcWaiter) scan() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sessionRefPattern.FindString(w.content.String())
}

func (c *DDCCollector) waiter(refid string) *ddcWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictStale()
	w, ok := c.waiters[refid]
	if !ok {
		w = &ddcWaiter{colref: make(chan string, 1)}
		c.waiters[refid] = w
	}
	w.lastSeen = time.Now()
	return w
}

// evictStale drops waiters that have not been touched within the retention
// window. Caller holds c.mu. Waiters for an active Wait are touched at Wait
// start and released on return, so only orphaned entries age out.
func (c *DDCCollector) evictStale() {
	cutoff := time.Now().Add(-c.retention)
	for refid, w := range c.waiters {
		if w.lastSeen.Before(cutoff) {
			delete(c.waiters, refid)
		}
	}
}

func (c *DDCCollector) release(refid string) {
	c.mu.Lock()
	delete(c.waiters, refid)
	c.mu.Unlock()
}

func isSynthesizedColref(colref string) bool {
	return strings.HasPrefix(colref, fallbackColrefPrefix)
}
