// Package responder simulates a bot that answers after a random delay with
// a random line from the active persona's reply pool.
package responder

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/metrics"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/store"
)

// Default reply delay bounds.
const (
	DefaultMinDelay = 700 * time.Millisecond
	DefaultMaxDelay = 2200 * time.Millisecond
)

// appendTimeout bounds the persist triggered by a delivered reply.
const appendTimeout = 5 * time.Second

// State is the responder's externally visible state.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Appender adds a message to the conversation. *chatlog.Log implements it.
type Appender interface {
	Append(ctx context.Context, d models.Draft) (models.Message, error)
}

// Catalog resolves personas by id. *persona.Catalog implements it.
type Catalog interface {
	Lookup(id string) (models.Persona, bool)
}

// Random is the source used for delays and reply selection.
// *math/rand/v2.Rand implements it.
type Random interface {
	Int64N(n int64) int64
	IntN(n int) int
}

// Options configures a Responder.
type Options struct {
	Clock    clock.Clock
	Random   Random
	MinDelay time.Duration
	MaxDelay time.Duration
	Logger   zerolog.Logger

	// OnChange runs after every state transition.
	OnChange func()
	// OnReply runs after a reply has been appended.
	OnReply func(models.Persona, models.Message)
}

type pendingReply struct {
	ticket  string
	persona models.Persona
	timer   clock.Timer
}

// Responder is a two-state (Idle/Pending) reply scheduler. Each Trigger
// schedules its own timer; only the newest one is tracked for Cancel, so
// overlapping triggers each produce a reply.
type Responder struct {
	mu       sync.Mutex
	catalog  Catalog
	appender Appender
	clock    clock.Clock
	rnd      Random
	minDelay time.Duration
	maxDelay time.Duration
	onChange func()
	onReply  func(models.Persona, models.Message)
	logger   zerolog.Logger

	outstanding []*pendingReply // oldest first
	tracked     *pendingReply
}

// New creates an idle Responder.
func New(catalog Catalog, appender Appender, opts Options) *Responder {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.MinDelay <= 0 && opts.MaxDelay <= 0 {
		opts.MinDelay, opts.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MinDelay, opts.MaxDelay = opts.MaxDelay, opts.MinDelay
	}
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	if opts.OnReply == nil {
		opts.OnReply = func(models.Persona, models.Message) {}
	}
	return &Responder{
		catalog:  catalog,
		appender: appender,
		clock:    opts.Clock,
		rnd:      opts.Random,
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		onChange: opts.OnChange,
		onReply:  opts.OnReply,
		logger:   opts.Logger.With().Str("component", "responder").Logger(),
	}
}

// Trigger schedules a reply from the persona. An unknown persona schedules
// nothing and returns false.
func (r *Responder) Trigger(personaID string) bool {
	p, ok := r.catalog.Lookup(personaID)
	if !ok {
		r.logger.Debug().Str("persona", personaID).Msg("unknown persona, no reply")
		return false
	}

	r.mu.Lock()
	delay := r.delay()
	pr := &pendingReply{ticket: uuid.Must(uuid.NewV7()).String(), persona: p}
	pr.timer = r.clock.AfterFunc(delay, func() { r.fire(pr) })
	r.outstanding = append(r.outstanding, pr)
	r.tracked = pr
	r.mu.Unlock()

	metrics.RepliesScheduled.WithLabelValues(p.ID).Inc()
	metrics.RepliesPending.Inc()
	r.logger.Debug().
		Str("persona", p.ID).
		Str("ticket", pr.ticket).
		Dur("delay", delay).
		Msg("reply scheduled")

	r.onChange()
	return true
}

// Cancel stops the tracked reply if it has not fired yet.
func (r *Responder) Cancel() bool {
	r.mu.Lock()
	pr := r.tracked
	stopped := pr != nil && pr.timer.Stop()
	if stopped {
		r.settle(pr)
	}
	r.mu.Unlock()

	if stopped {
		metrics.RepliesPending.Dec()
		r.logger.Debug().Str("ticket", pr.ticket).Msg("reply cancelled")
		r.onChange()
	}
	return stopped
}

// State reports whether any reply is outstanding.
func (r *Responder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outstanding) > 0 {
		return Pending
	}
	return Idle
}

// Typing returns the persona whose reply is pending, if any.
func (r *Responder) Typing() (models.Persona, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outstanding) == 0 {
		return models.Persona{}, false
	}
	return r.outstanding[len(r.outstanding)-1].persona, true
}

func (r *Responder) fire(pr *pendingReply) {
	r.mu.Lock()
	r.settle(pr)
	reply := pr.persona.ReplyPool[r.pick(len(pr.persona.ReplyPool))]
	r.mu.Unlock()

	metrics.RepliesPending.Dec()
	r.onChange()

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	msg, err := r.appender.Append(ctx, models.Draft{
		Sender:    models.SenderBot,
		Kind:      models.KindText,
		Text:      reply,
		AvatarRef: pr.persona.AvatarRef,
	})
	if err != nil && !store.IsPersistenceFailure(err) {
		r.logger.Error().Err(err).Str("ticket", pr.ticket).Msg("reply not appended")
		return
	}

	metrics.RepliesDelivered.WithLabelValues(pr.persona.ID).Inc()
	r.logger.Debug().
		Str("persona", pr.persona.ID).
		Str("ticket", pr.ticket).
		Str("message_id", msg.ID).
		Msg("reply delivered")
	r.onReply(pr.persona, msg)
}

// settle marks pr as no longer outstanding. Caller holds r.mu.
func (r *Responder) settle(pr *pendingReply) {
	for i, o := range r.outstanding {
		if o == pr {
			r.outstanding = append(r.outstanding[:i:i], r.outstanding[i+1:]...)
			break
		}
	}
	if r.tracked == pr {
		r.tracked = nil
	}
}

// delay draws uniformly from [minDelay, maxDelay]. Caller holds r.mu.
func (r *Responder) delay() time.Duration {
	span := int64(r.maxDelay - r.minDelay)
	if span <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rnd.Int64N(span+1))
}

// pick returns an index in [0, n). Caller holds r.mu.
func (r *Responder) pick(n int) int {
	if n <= 1 {
		return 0
	}
	return r.rnd.IntN(n)
}
