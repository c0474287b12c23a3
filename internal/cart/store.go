package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stroymarket/backend/internal/models"
)

// Line is one product-quantity pairing in the active cart.
type Line struct {
	ID       string         `json:"id"`
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	AddedAt  time.Time      `json:"added_at"`
}

// Cache is the durable local mirror. It always works, session or not, and is
// the fallback source when the remote table is unreachable.
type Cache interface {
	Load(ctx context.Context, owner string) ([]Line, error)
	Save(ctx context.Context, owner string, lines []Line) error
	Delete(ctx context.Context, owner string) error
}

// Remote is the per-user cart table. Replace is full-replace: the current line
// set supersedes whatever rows exist for the user.
type Remote interface {
	Load(ctx context.Context, userID uint) ([]Line, error)
	Replace(ctx context.Context, userID uint, lines []Line) error
}

// Store holds the authoritative in-memory cart for one session. The local
// cache and the remote table are downstream mirrors; neither is consulted
// again for truth once loaded. Invariants: at most one line per product id,
// every quantity >= 1.
type Store struct {
	mu         sync.Mutex
	sessionKey string
	userID     uint
	loaded     bool
	lines      []Line
	local      Cache
	remote     Remote
	log        *slog.Logger
	subs       []chan struct{}
}

func NewStore(local Cache, remote Remote, sessionKey string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		sessionKey: sessionKey,
		local:      local,
		remote:     remote,
		log:        log,
	}
}

func (s *Store) owner() string {
	if s.userID != 0 {
		return fmt.Sprintf("user:%d", s.userID)
	}
	return "guest:" + s.sessionKey
}

// Activate binds the store to the request's identity: the first call loads
// from the best available source, later calls reconcile only when the
// identity actually changed (sign-in or sign-out).
func (s *Store) Activate(ctx context.Context, userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loaded = true
		s.userID = userID
		s.loadLocked(ctx)
		return
	}
	if userID != s.userID {
		s.setIdentityLocked(ctx, userID)
	}
}

// Load fills the in-memory cart from the best available source. Remote read
// failures degrade to the local cache and never surface to the caller.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) {
	if s.userID != 0 && s.remote != nil {
		remote, err := s.remote.Load(ctx, s.userID)
		if err == nil {
			s.lines = remote
			s.saveLocal(ctx)
			s.notifyLocked()
			return
		}
		s.log.Warn("cart_remote_load_failed", "user_id", s.userID, "error", err)
	}

	local, err := s.local.Load(ctx, s.owner())
	if err != nil {
		s.log.Warn("cart_cache_load_failed", "owner", s.owner(), "error", err)
		local = nil
	}
	s.lines = local
	s.notifyLocked()
}

// SetIdentity switches the persistence target and reconciles. On sign-in a
// non-empty remote cart wins outright; an empty remote cart adopts the local
// guest cart. Sign-out (userID 0) clears the cart and the guest snapshot; the
// signed-in cart survives only in the remote table.
func (s *Store) SetIdentity(ctx context.Context, userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.setIdentityLocked(ctx, userID)
}

func (s *Store) setIdentityLocked(ctx context.Context, userID uint) {
	if userID == 0 {
		s.userID = 0
		s.lines = nil
		if err := s.local.Delete(ctx, s.owner()); err != nil {
			s.log.Warn("cart_cache_clear_failed", "owner", s.owner(), "error", err)
		}
		s.notifyLocked()
		return
	}

	guestLines := s.lines
	guestOwner := s.owner()
	s.userID = userID
	// The guest snapshot is spent once the lines move under the user's key.
	if err := s.local.Delete(ctx, guestOwner); err != nil {
		s.log.Warn("cart_cache_clear_failed", "owner", guestOwner, "error", err)
	}

	if s.remote == nil {
		s.saveLocal(ctx)
		s.notifyLocked()
		return
	}

	remote, err := s.remote.Load(ctx, userID)
	if err != nil {
		// Degraded mode: keep whatever we had, local cache only.
		s.log.Warn("cart_remote_load_failed", "user_id", userID, "error", err)
		s.saveLocal(ctx)
		s.notifyLocked()
		return
	}

	if len(remote) == 0 && len(guestLines) > 0 {
		// Guest-cart adoption.
		if err := s.remote.Replace(ctx, userID, guestLines); err != nil {
			s.log.Warn("cart_adopt_failed", "user_id", userID, "error", err)
		}
		s.lines = guestLines
	} else if len(remote) > 0 {
		s.lines = remote
	}

	s.saveLocal(ctx)
	s.notifyLocked()
}

// AddLine puts quantity units of the product into the cart, merging into an
// existing line for the same product id.
func (s *Store) AddLine(ctx context.Context, p models.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := false
	for i := range s.lines {
		if s.lines[i].Product.ID == p.ID {
			s.lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.lines = append(s.lines, Line{
			ID:       fmt.Sprintf("%s-%d", p.ID, time.Now().UnixMilli()),
			Product:  p,
			Quantity: quantity,
			AddedAt:  time.Now(),
		})
	}

	s.persistLocked(ctx)
}

func (s *Store) RemoveLine(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.Product.ID != productID {
			kept = append(kept, l)
		}
	}
	s.lines = kept
	s.persistLocked(ctx)
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveLine(ctx, productID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID == productID {
			s.lines[i].Quantity = quantity
			break
		}
	}
	s.persistLocked(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.persistLocked(ctx)
}

func (s *Store) GetQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lines {
		if l.Product.ID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Lines returns a copy of the current line set.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, l := range s.lines {
		total += l.Product.Price * float64(l.Quantity)
	}
	return total
}

// Subscribe returns a channel that receives a tick after every cart change.
// Slow subscribers miss intermediate ticks, never block mutations.
func (s *Store) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// persistLocked mirrors the full line set downstream: local cache always,
// remote table when a session exists. Remote failure is logged and swallowed;
// the in-memory cart stays usable through a backend outage.
func (s *Store) persistLocked(ctx context.Context) {
	s.saveLocal(ctx)

	if s.userID != 0 && s.remote != nil {
		if err := s.remote.Replace(ctx, s.userID, s.lines); err != nil {
			s.log.Warn("cart_remote_save_failed", "user_id", s.userID, "error", err)
		}
	}

	s.notifyLocked()
}

func (s *Store) saveLocal(ctx context.Context) {
	if err := s.local.Save(ctx, s.owner(), s.lines); err != nil {
		s.log.Warn("cart_cache_save_failed", "owner", s.owner(), "error", err)
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
