// Package ballot performs the terminal NOT_CAST -> CAST transition of a
// registrant. The transition happens at most once; repeated or concurrent
// commits observe the first one.
package ballot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/votegate/internal/events"
	"github.com/charlesng35/votegate/internal/models"
	"github.com/charlesng35/votegate/internal/outcome"
	"github.com/charlesng35/votegate/internal/registry"
	"github.com/charlesng35/votegate/pkg/metrics"
	"github.com/charlesng35/votegate/pkg/sms"
)

const confirmationLayout = "20060102150405"

// Store is the slice of the registry the committer needs.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Registrant, error)
	CompareAndSetVoted(ctx context.Context, id string, at time.Time) (*registry.CommitResult, error)
}

// Receipt is the committed ballot state. FirstCommit is true only for the
// call that performed the transition.
type Receipt struct {
	Registrant     *models.Registrant
	ConfirmationID string
	FirstCommit    bool
}

// Option customises the Committer.
type Option func(*Committer)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Committer) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithSender sets the confirmation SMS sender.
func WithSender(sender sms.Sender) Option {
	return func(c *Committer) {
		c.sender = sender
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(pub events.Publisher) Option {
	return func(c *Committer) {
		if pub != nil {
			c.publisher = pub
		}
	}
}

// WithLogger overrides the committer logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Committer) {
		if log != nil {
			c.log = log
		}
	}
}

// Committer records votes.
type Committer struct {
	store     Store
	sender    sms.Sender
	publisher events.Publisher
	now       func() time.Time
	log       *zap.Logger
}

// NewCommitter constructs a Committer.
func NewCommitter(store Store, opts ...Option) (*Committer, error) {
	if store == nil {
		return nil, errors.New("ballot committer: store is required")
	}
	c := &Committer{
		store:     store,
		publisher: events.NopPublisher{},
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ConfirmationID derives the receipt number from the voting timestamp.
func ConfirmationID(votedAt time.Time) string {
	return "VT" + votedAt.UTC().Format(confirmationLayout)
}

// Commit marks the registrant as voted. It is idempotent: an already cast
// ballot is returned unchanged. Caller cancellation is ignored once the
// commit starts.
func (c *Committer) Commit(ctx context.Context, registrantID string) (*Receipt, error) {
	ctx = context.WithoutCancel(ctx)

	current, err := c.store.FindByID(ctx, registrantID)
	if err != nil {
		return nil, c.fail(err)
	}
	if current.HasVoted {
		metrics.BallotCommits.WithLabelValues("already_cast").Inc()
		return receipt(current, false), nil
	}

	res, err := c.store.CompareAndSetVoted(ctx, registrantID, c.now().UTC())
	if err != nil {
		return nil, c.fail(err)
	}
	if res.AlreadySet {
		c.log.Info("ballot commit lost race", zap.String("registrant_id", registrantID))
		metrics.BallotCommits.WithLabelValues("already_cast").Inc()
		return receipt(res.Record, false), nil
	}

	metrics.BallotCommits.WithLabelValues("committed").Inc()
	out := receipt(res.Record, true)
	c.notify(ctx, out)
	c.publish(ctx, out)
	return out, nil
}

func receipt(r *models.Registrant, first bool) *Receipt {
	out := &Receipt{Registrant: r, FirstCommit: first}
	if r.VotedAt != nil {
		out.ConfirmationID = ConfirmationID(*r.VotedAt)
	}
	return out
}

func (c *Committer) fail(err error) error {
	if errors.Is(err, registry.ErrNotFound) {
		metrics.BallotCommits.WithLabelValues("not_found").Inc()
		return outcome.Reject(outcome.KindNotFound, "Voter not found or vote could not be recorded.")
	}
	metrics.BallotCommits.WithLabelValues("error").Inc()
	c.log.Error("ballot commit failed", zap.Error(err))
	return outcome.Unavailable(outcome.KindRegistryUnavailable, "Vote could not be recorded. Please retry.", err)
}

func (c *Committer) notify(ctx context.Context, r *Receipt) {
	if c.sender == nil {
		return
	}
	body := fmt.Sprintf("Your vote has been successfully recorded. Confirmation ID: %s.", r.ConfirmationID)
	if _, err := c.sender.Send(ctx, sms.Message{To: r.Registrant.PhoneNumber, Body: body}); err != nil {
		if !errors.Is(err, sms.ErrSMSDisabled) {
			metrics.SMSDispatch.WithLabelValues("confirmation", "failed").Inc()
			c.log.Warn("vote confirmation sms failed",
				zap.String("registrant_id", r.Registrant.ID),
				zap.Error(err),
			)
		}
		return
	}
	metrics.SMSDispatch.WithLabelValues("confirmation", "sent").Inc()
}

func (c *Committer) publish(ctx context.Context, r *Receipt) {
	evt := events.NewEvent(events.TypeVoteCommitted, r.Registrant.ID, *r.Registrant.VotedAt, map[string]string{
		"registrant_id":   r.Registrant.ID,
		"constituency":    r.Registrant.Constituency,
		"polling_station": r.Registrant.PollingStation,
		"confirmation_id": r.ConfirmationID,
	})
	if err := c.publisher.Publish(ctx, evt); err != nil {
		c.log.Warn("vote committed event not published",
			zap.String("registrant_id", r.Registrant.ID),
			zap.Error(err),
		)
	}
}
