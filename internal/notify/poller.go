// Package notify keeps a near-real-time count of pending notifications
// for the roles that handle secretariat forms.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mmhmddd/omega-gateway/internal/metrics"
	"github.com/mmhmddd/omega-gateway/internal/model"
	"github.com/mmhmddd/omega-gateway/internal/policy"
	"github.com/mmhmddd/omega-gateway/internal/session"
)

// Poller fetches the notification list on a fixed interval while a
// qualifying session exists, and stops the ticker the moment it does
// not. Each fetch replaces the list wholesale; a stale poll landing
// after an optimistic mark-read is tolerated, the next tick corrects it.
type Poller struct {
	store    *session.Store
	http     *http.Client
	baseURL  string
	interval time.Duration
	metrics  *metrics.Collector

	mu    sync.RWMutex
	items []model.Notification

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(store *session.Store, httpClient *http.Client, baseURL string, interval time.Duration, collector *metrics.Collector) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		store:    store,
		http:     httpClient,
		baseURL:  baseURL,
		interval: interval,
		metrics:  collector,
	}
}

func qualifies(user *model.User) bool {
	return policy.RoleAllowed(user, model.RoleSuperAdmin, model.RoleSecretariat)
}

// Start launches the polling loop. Close must be called on teardown so
// no ticker outlives the session.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

func (p *Poller) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	updates, unsubscribe := p.store.Subscribe()
	defer unsubscribe()

	var ticker *time.Ticker
	var tick <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	defer stop()

	start := func() {
		p.fetch(ctx)
		ticker = time.NewTicker(p.interval)
		tick = ticker.C
	}

	if qualifies(p.store.CurrentUser()) {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			active := ticker != nil
			wants := snap.Authenticated() && qualifies(snap.User)
			switch {
			case wants && !active:
				start()
			case !wants && active:
				stop()
				p.replace(nil)
			}
		case <-tick:
			p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user-forms/notifications/all", nil)
	if err != nil {
		p.metrics.RecordPoll(false)
		return
	}

	resp, err := p.http.Do(req)
	if err != nil {
		log.Printf("notify: poll failed: %v", err)
		p.metrics.RecordPoll(false)
		return
	}
	defer resp.Body.Close()

	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || !env.Success {
		p.metrics.RecordPoll(false)
		return
	}

	var items []model.Notification
	if err := json.Unmarshal(env.Data, &items); err != nil {
		log.Printf("notify: bad notification payload: %v", err)
		p.metrics.RecordPoll(false)
		return
	}

	p.replace(items)
	p.metrics.RecordPoll(true)
}

func (p *Poller) replace(items []model.Notification) {
	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
}

func (p *Poller) Notifications() []model.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Notification(nil), p.items...)
}

// UnreadCount is derived from the current list, never stored.
func (p *Poller) UnreadCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for _, n := range p.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead tells the backend one notification was read and flips the
// local flag optimistically, independent of the polling cycle.
func (p *Poller) MarkRead(ctx context.Context, id string) error {
	if err := p.post(ctx, fmt.Sprintf("/user-forms/notifications/%s/read", id)); err != nil {
		return err
	}
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i].IsRead = true
		}
	}
	p.mu.Unlock()
	return nil
}

func (p *Poller) MarkAllRead(ctx context.Context) error {
	if err := p.post(ctx, "/user-forms/notifications/mark-all-read"); err != nil {
		return err
	}
	p.mu.Lock()
	for i := range p.items {
		p.items[i].IsRead = true
	}
	p.mu.Unlock()
	return nil
}

func (p *Poller) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mark read: backend returned %d", resp.StatusCode)
	}
	return nil
}
