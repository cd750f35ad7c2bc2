package session

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"lifeline/internal/bus"
	"lifeline/internal/feed"
	"lifeline/internal/store"
)

// refreshInterval bounds how long a dropped change event can distort the feed:
// the session periodically re-backfills from the store, which is the source of
// truth, so the view converges even when the bus lost a removal.
const refreshInterval = 30 * time.Second

// PendingLister backfills a responder feed from the store.
type PendingLister interface {
	ListPendingByCategory(ctx context.Context, category string) ([]*store.Alert, error)
}

// ResponderSession follows the pending alerts in one responder's category. It
// subscribes to the category channel, backfills the feed from the store, and
// pushes a fresh snapshot whenever the visible offer set changes.
type ResponderSession struct {
	userID string
	feed   *feed.Feed

	bus    bus.Bus
	lister PendingLister

	refresh time.Duration
	updates chan Update

	lastOffers []feed.Offer
}

// NewResponderSession creates a session for a responder in the given category.
func NewResponderSession(userID, category string, changeBus bus.Bus, lister PendingLister) *ResponderSession {
	return &ResponderSession{
		userID:  userID,
		feed:    feed.New(category),
		bus:     changeBus,
		lister:  lister,
		refresh: refreshInterval,
		updates: make(chan Update, updateBuffer),
	}
}

// UserID returns the responder's id.
func (s *ResponderSession) UserID() string { return s.userID }

// Feed exposes the session's feed for the decline path.
func (s *ResponderSession) Feed() *feed.Feed { return s.feed }

// Updates returns the channel of state snapshots for the stream handler. It is
// closed when the session finishes.
func (s *ResponderSession) Updates() <-chan Update { return s.updates }

// Run drives the session until the context is cancelled. Subscribe precedes
// the backfill so nothing slips through the gap; an event arriving during the
// backfill is applied on top and the feed converges either way.
func (s *ResponderSession) Run(ctx context.Context) error {
	defer close(s.updates)

	sub, err := s.bus.SubscribeCategory(ctx, s.feed.Category())
	if err != nil {
		return err
	}
	defer sub.Close()

	alerts, err := s.lister.ListPendingByCategory(ctx, s.feed.Category())
	if err != nil {
		return err
	}
	s.feed.Backfill(alerts)
	s.drainChanged()
	s.pushSnapshot()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			s.feed.Apply(ev)
			s.drainChanged()
			s.pushSnapshot()
		case <-s.feed.Changed():
			// Decline or removal landed from the offer directory.
			s.pushSnapshot()
		case <-ticker.C:
			s.refreshFeed(ctx)
		}
	}
}

// refreshFeed re-backfills the feed from the store. A removal event dropped on
// a full subscriber buffer leaves a stale offer; the refresh clears it.
func (s *ResponderSession) refreshFeed(ctx context.Context) {
	alerts, err := s.lister.ListPendingByCategory(ctx, s.feed.Category())
	if err != nil {
		slog.Warn("Feed refresh failed", "user_id", s.userID, "category", s.feed.Category(), "error", err)
		return
	}
	s.feed.Backfill(alerts)
	s.drainChanged()
	s.pushSnapshot()
}

// drainChanged clears the feed's coalesced change signal so a mutation we are
// already snapshotting does not trigger a second, identical push.
func (s *ResponderSession) drainChanged() {
	select {
	case <-s.feed.Changed():
	default:
	}
}

// pushSnapshot emits the current offer view. State is offered while something
// is on offer and idle otherwise; the full queue rides along so clients can
// render a list instead of a single card. A snapshot identical to the previous
// one is suppressed, which keeps the periodic refresh quiet when nothing moved.
func (s *ResponderSession) pushSnapshot() {
	offers := s.feed.Offers()
	if s.lastOffers != nil && reflect.DeepEqual(offers, s.lastOffers) {
		return
	}
	s.lastOffers = offers
	u := Update{State: StateIdle, Offers: offers}
	if len(offers) > 0 {
		u.State = StateOffered
		first := offers[0]
		u.Alert = &first
	}
	select {
	case s.updates <- u:
	default:
		slog.Warn("Dropping responder update, slow consumer", "user_id", s.userID, "category", s.feed.Category())
	}
}
