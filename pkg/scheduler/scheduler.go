package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/preset"
	"github.com/jameshartig/autopreset/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/robfig/cron/v3"
)

// defaultJobTimeout bounds a single cron-triggered invocation. The HTTP client
// has its own, shorter, timeout.
const defaultJobTimeout = time.Minute

// Handler applies a single preset per invocation.
type Handler interface {
	Handle(ctx context.Context) preset.Response
	Preset() types.Preset
}

// Scheduler triggers preset handlers in-process on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	names   map[cron.EntryID]string

	// ctx is the parent of every invocation, set by Run before cron starts
	ctx context.Context
}

// Configured returns a Scheduler with a "<preset>-schedule" flag registered
// for each handler. An empty schedule leaves that preset unscheduled.
func Configured(handlers ...Handler) *Scheduler {
	s := New()

	specs := make([]*string, len(handlers))
	for i, h := range handlers {
		name := h.Preset().Name
		specs[i] = lflag.String(name+"-schedule", "", "cron schedule (5 fields, CRON_TZ= prefix allowed) to apply the "+name+" preset on, empty to disable")
	}
	timeout := lflag.Duration("schedule-timeout", defaultJobTimeout, "maximum duration of a scheduled invocation")

	lflag.Do(func() {
		s.timeout = *timeout
		for i, h := range handlers {
			if err := s.Add(*specs[i], h); err != nil {
				panic(err)
			}
		}
	})

	return s
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		timeout: defaultJobTimeout,
		names:   make(map[cron.EntryID]string),
		ctx:     context.Background(),
	}
}

// Add schedules h on spec. An empty spec is ignored.
func (s *Scheduler) Add(spec string, h Handler) error {
	if spec == "" {
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.invoke(h) })
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", h.Preset().Name, spec, err)
	}
	s.names[id] = h.Preset().Name
	return nil
}

// Len returns the number of scheduled presets.
func (s *Scheduler) Len() int {
	return len(s.names)
}

func (s *Scheduler) invoke(h Handler) {
	name := h.Preset().Name
	ctx := log.WithAttrs(s.ctx, slog.String("preset", name), slog.String("trigger", "cron"))
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp := h.Handle(ctx)
	log.Ctx(ctx).DebugContext(ctx, "scheduled invocation finished", slog.Int("status", resp.StatusCode))
}

// Run starts the scheduled jobs and blocks until ctx is canceled. Jobs that are
// still running when ctx is canceled are waited on before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.names) == 0 {
		log.Ctx(ctx).DebugContext(ctx, "no schedules configured")
		<-ctx.Done()
		return nil
	}

	s.ctx = context.WithoutCancel(ctx)
	for _, e := range s.cron.Entries() {
		log.Ctx(ctx).InfoContext(
			ctx,
			"scheduled preset",
			slog.String("preset", s.names[e.ID]),
			slog.Time("next", e.Schedule.Next(time.Now())),
		)
	}
	s.cron.Start()

	<-ctx.Done()
	log.Ctx(ctx).InfoContext(ctx, "stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}
