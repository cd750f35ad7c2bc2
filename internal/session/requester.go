package session

import (
	"context"
	"errors"
	"log/slog"

	"lifeline/internal/bus"
	"lifeline/internal/events"
	"lifeline/internal/feed"
	"lifeline/internal/store"
)

// AlertReader is the single point read a requester session needs to reconcile
// after subscribing.
type AlertReader interface {
	GetAlert(ctx context.Context, alertID string) (*store.Alert, error)
}

// RequesterSession follows one requester's active alert. It subscribes to the
// alert's change channel, reconciles against the store to cover events that
// fired before the subscription existed, and then folds live events into a
// state that moves pending, to accepted, to idle when the record vanishes.
type RequesterSession struct {
	userID  string
	alertID string

	bus    bus.Bus
	reader AlertReader

	updates chan Update
}

// NewRequesterSession creates a session watching the given alert.
func NewRequesterSession(userID, alertID string, changeBus bus.Bus, reader AlertReader) *RequesterSession {
	return &RequesterSession{
		userID:  userID,
		alertID: alertID,
		bus:     changeBus,
		reader:  reader,
		updates: make(chan Update, updateBuffer),
	}
}

// UserID returns the requester's id.
func (s *RequesterSession) UserID() string { return s.userID }

// Updates returns the channel of state snapshots for the stream handler. It is
// closed when the session finishes.
func (s *RequesterSession) Updates() <-chan Update { return s.updates }

// Run drives the session until the alert reaches a terminal state or the
// context is cancelled. It blocks and is meant to be the handler goroutine.
func (s *RequesterSession) Run(ctx context.Context) error {
	defer close(s.updates)

	// Subscribe before the reconciling read so no event can fall in between.
	sub, err := s.bus.SubscribeAlert(ctx, s.alertID)
	if err != nil {
		return err
	}
	defer sub.Close()

	alert, err := s.reader.GetAlert(ctx, s.alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Already gone before we could watch it.
			s.push(Update{State: StateIdle})
			return nil
		}
		return err
	}
	s.pushAlert(alert.Status, alert.ResponderID, offerFromAlert(alert))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			done := s.apply(ev)
			if done {
				return nil
			}
		}
	}
}

// apply folds one event in and reports whether the session is finished.
func (s *RequesterSession) apply(ev *events.AlertChanged) bool {
	switch ev.Action {
	case events.ActionAccepted:
		s.pushAlert(store.StatusAccepted, ev.ResponderID, &feed.Offer{
			AlertID:     ev.AlertID,
			RequesterID: ev.RequesterID,
			Phone:       ev.Phone,
			Latitude:    ev.Latitude,
			Longitude:   ev.Longitude,
			Category:    ev.Category,
			CreatedAt:   ev.CreatedAt,
		})
		return false
	case events.ActionDeleted:
		s.push(Update{State: StateIdle})
		return true
	default:
		return false
	}
}

func (s *RequesterSession) pushAlert(status, responderID string, offer *feed.Offer) {
	state := StatePending
	if status == store.StatusAccepted {
		state = StateAccepted
	}
	s.push(Update{State: state, Alert: offer, ResponderID: responderID})
}

func (s *RequesterSession) push(u Update) {
	select {
	case s.updates <- u:
	default:
		slog.Warn("Dropping requester update, slow consumer", "user_id", s.userID, "alert_id", s.alertID)
	}
}

func offerFromAlert(a *store.Alert) *feed.Offer {
	return &feed.Offer{
		AlertID:     a.AlertID,
		RequesterID: a.RequesterID,
		Phone:       a.Phone,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Category:    a.Category,
		CreatedAt:   a.CreatedAt.UnixMilli(),
	}
}
