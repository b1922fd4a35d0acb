package lead

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/crewkit/crewkit/internal/event"
	"github.com/crewkit/crewkit/internal/heartbeat"
	"github.com/crewkit/crewkit/internal/logging"
	"github.com/crewkit/crewkit/internal/mailbox"
	"github.com/crewkit/crewkit/internal/protocol"
	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
)

// ErrNotInitialized indicates SpawnAll or Run was called before Initialize
// (or before an existing config was loaded).
var ErrNotInitialized = errors.New("lead: team not initialized")

// Team drives a single team from the lead's side.
type Team struct {
	cfg     team.Config
	baseDir string
	teamDir string
	leadID  string

	mb    *mailbox.Mailbox
	queue *taskqueue.Queue
	bus   *event.Bus
	log   *logging.Logger

	execPath     string
	execArgs     []string
	traceID      string
	parentSpanID string

	mu     sync.Mutex
	procs  map[string]*exec.Cmd
	exited map[string]bool

	stopOnce sync.Once
	stopCh   chan struct{}

	initialized bool
}

// New creates a Team for cfg rooted at baseDir. Call Initialize before
// SpawnAll or Run.
func New(baseDir string, cfg team.Config, opts ...Option) *Team {
	t := &Team{
		cfg:     cfg,
		baseDir: baseDir,
		teamDir: team.Dir(baseDir, cfg.TeamName),
		log:     logging.NopLogger(),
		bus:     event.NewBus(),
		procs:   make(map[string]*exec.Cmd),
		exited:  make(map[string]bool),
		stopCh:  make(chan struct{}),
	}
	if lead, ok := cfg.Lead(); ok {
		t.leadID = lead.AgentID
	}
	for _, opt := range opts {
		opt(t)
	}
	t.mb = mailbox.New(t.teamDir)
	t.queue = taskqueue.New(t.teamDir, cfg.Settings.LockTimeout())
	return t
}

// Queue exposes the team's shared task queue so the driving application can
// seed and inspect work.
func (t *Team) Queue() *taskqueue.Queue {
	return t.queue
}

// Mailbox exposes the team's mailbox for direct sends from the lead.
func (t *Team) Mailbox() *mailbox.Mailbox {
	return t.mb
}

// Bus exposes the event bus loop events are mirrored to.
func (t *Team) Bus() *event.Bus {
	return t.bus
}

// Dir returns the team's on-disk directory.
func (t *Team) Dir() string {
	return t.teamDir
}

// Initialize validates the roster and writes the write-once team config. A
// second Initialize against the same directory fails with
// team.ErrConfigExists.
func (t *Team) Initialize() error {
	if err := team.WriteConfig(t.baseDir, t.cfg); err != nil {
		return err
	}
	t.initialized = true
	t.log.Info("team initialized", "team", t.cfg.TeamName, "agents", len(t.cfg.Agents))
	return nil
}

// Attach marks the team as initialized from an existing on-disk config
// instead of writing a fresh one. The caller only needs to know the team
// name; the roster and settings come from the loaded config.
func (t *Team) Attach() error {
	cfg, err := team.LoadConfig(t.baseDir, t.cfg.TeamName)
	if err != nil {
		return err
	}
	t.cfg = cfg
	if lead, ok := cfg.Lead(); ok {
		t.leadID = lead.AgentID
	}
	// The queue's lock timeout comes from the settings, which the attaching
	// caller's config may not carry.
	t.queue = taskqueue.New(t.teamDir, cfg.Settings.LockTimeout())
	t.initialized = true
	return nil
}

// SpawnAll forks one process per roster teammate, passing identity through
// the environment. Already-spawned teammates are skipped, so SpawnAll is
// idempotent for a living team.
func (t *Team) SpawnAll(ctx context.Context) error {
	if !t.initialized {
		return ErrNotInitialized
	}

	for _, mate := range t.cfg.Teammates() {
		t.mu.Lock()
		_, running := t.procs[mate.AgentID]
		t.mu.Unlock()
		if running {
			continue
		}

		cmd, err := t.spawn(ctx, mate)
		if err != nil {
			return fmt.Errorf("lead: spawning %s: %w", mate.AgentID, err)
		}

		t.mu.Lock()
		t.procs[mate.AgentID] = cmd
		t.mu.Unlock()

		ev := event.New(event.TypeTeammateSpawned).WithAgent(mate.AgentID)
		t.bus.Publish(ev)
		t.log.Info("teammate spawned", "agent_id", mate.AgentID, "pid", cmd.Process.Pid)
	}
	return nil
}

func (t *Team) spawn(ctx context.Context, mate team.AgentConfig) (*exec.Cmd, error) {
	path := t.execPath
	args := t.execArgs
	if mate.EntryScript != "" {
		path = mate.EntryScript
		args = nil
	}
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, err
		}
		path = self
		args = []string{"teammate"}
	}

	id := team.Identity{
		TeamName:     t.cfg.TeamName,
		BaseDir:      t.baseDir,
		AgentID:      mate.AgentID,
		SessionID:    t.cfg.SessionID,
		SystemPrompt: mate.SystemPrompt,
		TraceID:      t.traceID,
		ParentSpanID: t.parentSpanID,
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = id.Environ(os.Environ())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Each teammate leads its own process group so terminate can reach an
	// entry script's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// Reap in the background so exited children do not linger as zombies.
	go func() { _ = cmd.Wait() }()

	return cmd, nil
}

// Tick runs one observation pass and returns its events in a stable order:
// crash checks first, then queue completion, then mailbox drains. Only
// transport-level failures surface as errors.
func (t *Team) Tick() ([]event.Event, error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}

	var events []event.Event
	now := time.Now()
	timeout := t.cfg.Settings.HeartbeatTimeout()

	for _, mate := range t.cfg.Teammates() {
		t.mu.Lock()
		gone := t.exited[mate.AgentID]
		t.mu.Unlock()
		if gone {
			continue
		}

		st, found, err := heartbeat.Read(t.teamDir, mate.AgentID)
		if err != nil {
			return events, err
		}
		if found && st.Stale(now, timeout) {
			events = append(events, event.New(event.TypeTeammateCrashed).
				WithAgent(mate.AgentID).
				WithTask(st.CurrentTask))
		}
	}

	done, err := t.queue.AllDone()
	if err != nil {
		return events, err
	}
	if done {
		events = append(events, event.New(event.TypeAllTasksDone))
	}

	msgs, err := t.mb.ReadAll(t.leadID)
	if err != nil {
		return events, err
	}
	for _, msg := range msgs {
		events = append(events, t.classify(msg)...)
	}

	return events, nil
}

// classify maps one drained mailbox message to its loop events. Idle
// notifications are informational and produce nothing.
func (t *Team) classify(msg mailbox.Message) []event.Event {
	switch {
	case protocol.IsShutdownAck(msg):
		t.mu.Lock()
		t.exited[msg.From] = true
		t.mu.Unlock()
		return []event.Event{event.New(event.TypeTeammateExited).WithAgent(msg.From).WithMessage(msg.ID)}

	case protocol.IsIdleNotification(msg):
		t.log.Debug("teammate idle", "agent_id", msg.From)
		return nil

	case protocol.IsPlanSubmission(msg):
		var sub protocol.PlanSubmission
		if err := msg.DecodePayload(&sub); err != nil {
			t.log.Warn("malformed plan submission", "from", msg.From, "error", err)
			return nil
		}
		return []event.Event{event.New(event.TypePlanSubmitted).WithAgent(msg.From).WithPlan(sub.PlanID).WithMessage(msg.ID)}

	default:
		return []event.Event{event.New(event.TypeMessageSent).WithAgent(msg.From).WithMessage(msg.ID).WithDetail(string(msg.Type))}
	}
}

// Run ticks until Stop is called or ctx is cancelled, delivering every event
// on the returned unbuffered channel. The loop does not advance past a tick
// until its events have been consumed. The channel ends with a single
// shutdown_complete event and is then closed.
func (t *Team) Run(ctx context.Context) (<-chan event.Event, error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)

		emit := func(ev event.Event) bool {
			t.bus.Publish(ev)
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-t.stopCh:
				t.terminate()
				emit(event.New(event.TypeShutdownComplete))
				return
			case <-ctx.Done():
				t.terminate()
				emit(event.New(event.TypeShutdownComplete))
				return
			default:
			}

			events, err := t.Tick()
			if err != nil {
				// Transport failure: the coordination substrate is gone.
				t.log.Error("lead tick failed", "error", err)
				for _, ev := range events {
					if !emit(ev) {
						return
					}
				}
				t.terminate()
				emit(event.New(event.TypeShutdownComplete).WithDetail(err.Error()))
				return
			}
			for _, ev := range events {
				if !emit(ev) {
					return
				}
			}

			select {
			case <-time.After(t.cfg.Settings.PollInterval()):
			case <-t.stopCh:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// Stop ends the Run loop. All spawned child processes receive SIGTERM; the
// loop then emits its terminal shutdown_complete event.
func (t *Team) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// terminate signals every still-tracked child's process group.
func (t *Team) terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for agentID, cmd := range t.procs {
		if cmd.Process == nil {
			continue
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		if err != nil && !errors.Is(err, syscall.ESRCH) {
			t.log.Warn("failed to signal teammate", "agent_id", agentID, "error", err)
		}
	}
	t.log.Info("team stopped", "team", t.cfg.TeamName)
}
