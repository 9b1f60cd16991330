package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"campusconnect/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey      = "campus:presence:online"
	lastSeenKeyPrefix = "campus:presence:seen:"
	lastSeenTTL       = 90 * time.Second
	offlineGrace      = 5 * time.Second
	reaperInterval    = time.Minute
)

// Presence tracks which members have a live websocket. Local connection
// counts are mirrored into Redis so every API instance agrees; a member goes
// offline only after a grace period without connections.
type Presence struct {
	rdb *redis.Client

	mu       sync.RWMutex
	counts   map[uint]int
	timers   map[uint]*time.Timer
	notified map[uint]bool
	grace    time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence starts a tracker. The Redis reaper runs only when rdb is set.
func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:      rdb,
		counts:   make(map[uint]int),
		timers:   make(map[uint]*time.Timer),
		notified: make(map[uint]bool),
		grace:    offlineGrace,
		stopCh:   make(chan struct{}),
	}
	if rdb != nil {
		go p.reaperLoop()
	}
	return p
}

// SetCallbacks installs the online/offline transition hooks.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline = onOnline
	p.onOffline = onOffline
	p.mu.Unlock()
}

func (p *Presence) setGrace(d time.Duration) {
	p.mu.Lock()
	p.grace = d
	p.mu.Unlock()
}

// Stop halts the reaper and pending offline timers.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for id, t := range p.timers {
			t.Stop()
			delete(p.timers, id)
		}
		p.mu.Unlock()
	})
}

func (p *Presence) Connect(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.timers[userID]; ok {
		t.Stop()
		delete(p.timers, userID)
	}
	p.counts[userID]++
	p.notified[userID] = false
	p.mu.Unlock()

	p.Touch(ctx, userID)
	if !wasOnline {
		p.emit(userID, true)
	}
}

// Touch refreshes the member's last-seen marker.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, onlineSetKey, uid)
	pipe.SetEx(ctx, lastSeenKeyPrefix+uid, strconv.FormatInt(time.Now().Unix(), 10), lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.Warn("presence touch failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
	}
}

func (p *Presence) Disconnect(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.counts[userID] - 1; n > 0 {
		p.counts[userID] = n
		return
	}
	delete(p.counts, userID)

	if t, ok := p.timers[userID]; ok {
		t.Stop()
	}
	p.timers[userID] = time.AfterFunc(p.grace, func() {
		p.finalize(context.Background(), userID)
	})
}

// IsOnline reports whether userID has a connection on this or another instance.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.counts[userID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	n, err := p.rdb.Exists(ctx, lastSeenKeyPrefix+strconv.FormatUint(uint64(userID), 10)).Result()
	return err == nil && n > 0
}

// OnlineIDs filters ids down to the members currently online.
func (p *Presence) OnlineIDs(ctx context.Context, ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if p.IsOnline(ctx, id) {
			out = append(out, id)
		}
	}
	return out
}

func (p *Presence) finalize(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.timers, userID)
	if p.counts[userID] > 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.rdb != nil {
		uid := strconv.FormatUint(uint64(userID), 10)
		if n, err := p.rdb.Exists(ctx, lastSeenKeyPrefix+uid).Result(); err == nil && n > 0 {
			// Still connected through another instance.
			return
		}
		_ = p.rdb.SRem(ctx, onlineSetKey, uid).Err()
	}
	p.emit(userID, false)
}

// reapOnce drops members whose last-seen marker expired.
func (p *Presence) reapOnce(ctx context.Context) {
	members, err := p.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		if n, err := p.rdb.Exists(ctx, lastSeenKeyPrefix+raw).Result(); err != nil || n > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, onlineSetKey, raw).Err()

		p.mu.RLock()
		local := p.counts[uint(id)] > 0
		p.mu.RUnlock()
		if !local {
			p.emit(uint(id), false)
		}
	}
}

func (p *Presence) reaperLoop() {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) emit(userID uint, online bool) {
	p.mu.Lock()
	if !online && p.notified[userID] {
		p.mu.Unlock()
		return
	}
	p.notified[userID] = !online
	cb := p.onOffline
	if online {
		cb = p.onOnline
	}
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}
