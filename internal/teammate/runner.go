package teammate

import (
	"context"
	"time"

	"github.com/crewkit/crewkit/internal/event"
	"github.com/crewkit/crewkit/internal/heartbeat"
	"github.com/crewkit/crewkit/internal/logging"
	"github.com/crewkit/crewkit/internal/mailbox"
	"github.com/crewkit/crewkit/internal/protocol"
	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
)

// Executor turns a claimed task into actual work. A nil error completes the
// task with the returned result; a non-nil error fails it.
type Executor func(ctx context.Context, task taskqueue.Task) (result string, err error)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// WithBus sets the event bus loop events are mirrored to.
func WithBus(bus *event.Bus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithExecutor sets the function invoked synchronously for each claimed
// task. The runner completes or fails the task from its return.
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		r.exec = exec
	}
}

// Runner is one teammate's coordination loop.
type Runner struct {
	id     team.Identity
	cfg    team.Config
	leadID string

	mb    *mailbox.Mailbox
	queue *taskqueue.Queue
	hb    *heartbeat.Writer
	bus   *event.Bus
	log   *logging.Logger
	exec  Executor

	idle bool
}

// NewRunner creates a Runner for the identity against the team described by
// cfg.
func NewRunner(id team.Identity, cfg team.Config, opts ...Option) *Runner {
	teamDir := id.TeamDir()
	r := &Runner{
		id:    id,
		cfg:   cfg,
		mb:    mailbox.New(teamDir),
		queue: taskqueue.New(teamDir, cfg.Settings.LockTimeout()),
		hb:    heartbeat.NewWriter(teamDir, id.AgentID, cfg.Settings.HeartbeatInterval()),
		bus:   event.NewBus(),
		log:   logging.NopLogger(),
	}
	if lead, ok := cfg.Lead(); ok {
		r.leadID = lead.AgentID
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Queue exposes the shared task queue so the driving application can report
// completion for tasks it executes out of band.
func (r *Runner) Queue() *taskqueue.Queue {
	return r.queue
}

// Bus exposes the event bus loop events are mirrored to.
func (r *Runner) Bus() *event.Bus {
	return r.bus
}

// Tick runs one loop pass. done reports that a shutdown request was observed
// and the loop must not tick again; the final heartbeat has already been
// written by then.
func (r *Runner) Tick(ctx context.Context) (events []event.Event, done bool, err error) {
	if _, err := r.hb.Refresh(); err != nil {
		return nil, false, err
	}

	msgs, err := r.mb.ReadAll(r.id.AgentID)
	if err != nil {
		return nil, false, err
	}
	for _, msg := range msgs {
		if protocol.IsShutdownRequest(msg) {
			events = append(events, event.New(event.TypeShutdownRequested).WithAgent(r.id.AgentID).WithMessage(msg.ID))
			if err := protocol.AcknowledgeShutdown(r.mb, r.id.AgentID, msg.From); err != nil {
				return events, true, err
			}
			if err := r.hb.Stop(); err != nil {
				return events, true, err
			}
			r.log.Info("shutdown requested", "by", msg.From)
			return events, true, nil
		}
		events = append(events, event.New(event.TypeMessageReceived).
			WithAgent(msg.From).
			WithMessage(msg.ID).
			WithDetail(string(msg.Type)))
	}

	task, err := r.queue.ClaimNext(r.id.AgentID)
	if err != nil {
		return events, false, err
	}
	if task != nil {
		r.idle = false
		events = append(events, event.New(event.TypeTaskClaimed).WithAgent(r.id.AgentID).WithTask(task.ID))
		if err := r.hb.SetRunning(task.ID); err != nil {
			return events, false, err
		}
		r.log.Info("task claimed", "task_id", task.ID)

		if r.exec != nil {
			if err := r.execute(ctx, *task); err != nil {
				return events, false, err
			}
		}
		return events, false, nil
	}

	allDone, err := r.queue.AllDone()
	if err != nil {
		return events, false, err
	}

	events = append(events, event.New(event.TypeIdle).WithAgent(r.id.AgentID))
	if !r.idle {
		// Notify only on the transition; the lead treats it as advisory.
		r.idle = true
		note := protocol.IdleNotification{AllDone: allDone}
		if err := protocol.NotifyIdle(r.mb, r.id.AgentID, r.leadID, note); err != nil {
			return events, false, err
		}
	}
	if err := r.hb.SetIdle(); err != nil {
		return events, false, err
	}
	return events, false, nil
}

// execute runs the claimed task through the Executor and reports the outcome
// to the queue.
func (r *Runner) execute(ctx context.Context, task taskqueue.Task) error {
	result, execErr := r.exec(ctx, task)
	if execErr != nil {
		r.log.Warn("task failed", "task_id", task.ID, "error", execErr)
		_, err := r.queue.Fail(task.ID, r.id.AgentID, execErr.Error())
		return err
	}
	r.log.Info("task completed", "task_id", task.ID)
	_, err := r.queue.Complete(task.ID, r.id.AgentID, result)
	return err
}

// Run writes the initial running heartbeat, then ticks until a shutdown
// request arrives or ctx is cancelled, delivering every event on the
// returned unbuffered channel. The channel closes when the loop ends.
func (r *Runner) Run(ctx context.Context) (<-chan event.Event, error) {
	if err := r.hb.Start(); err != nil {
		return nil, err
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)

		emit := func(ev event.Event) bool {
			r.bus.Publish(ev)
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				// Best effort: leave a stopped record so the lead does not
				// read cancellation as a crash.
				_ = r.hb.Stop()
				return false
			}
		}

		for {
			events, done, err := r.Tick(ctx)
			for _, ev := range events {
				if !emit(ev) {
					return
				}
			}
			if err != nil {
				// Transport failure: the coordination substrate is gone.
				r.log.Error("teammate tick failed", "error", err)
				return
			}
			if done {
				return
			}

			select {
			case <-time.After(r.cfg.Settings.PollInterval()):
			case <-ctx.Done():
				// Best effort: leave a stopped record so the lead does not
				// read cancellation as a crash.
				_ = r.hb.Stop()
				return
			}
		}
	}()
	return out, nil
}
