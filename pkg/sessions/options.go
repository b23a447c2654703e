package sessions

import (
	"log/slog"

	"github.com/masklinn/pytest-sessions/pkg/sessions/config"
	"github.com/masklinn/pytest-sessions/pkg/sessions/observability"
)

// Options carries the host-provided configuration of one session.
type Options struct {
	// Dir is the directory holding the managed session stores.
	Dir string
	// Root is the filesystem root collection paths are relative to.
	Root string
	// Limit is the number of session stores retained, oldest evicted
	// first. Defaults to DefaultLimit.
	Limit int

	// Reference selects the reference store: a name resolved against
	// Dir, an absolute path, or empty for the most recent complete
	// store.
	Reference string

	// Rerun is the comma-separated list of outcome categories to rerun.
	Rerun string
	// RerunOrder is the comma-separated category priority for ordering
	// the kept items (same domain as Rerun, plus "new").
	RerunOrder string
	// ShowSession replays the reference session instead of executing.
	ShowSession bool

	// IsInitPath reports whether a path was an explicit initial argument
	// of the run; such nodes are never pruned by the skipper. Nil means
	// no initial arguments.
	IsInitPath func(path string) bool

	// Host contexts that must not mutate session history at finish.
	CollectOnly bool
	CacheShow   bool
	Worker      bool

	// Convenience flags mapping onto Rerun/RerunOrder, mirroring the
	// classic cacheprovider and stepwise options. Ignored when the
	// explicit fields above are set.
	LastFailed bool
	// LastFailedNoFailures is "all" (default) or "none": what to run
	// when no previously-failed test is selected.
	LastFailedNoFailures string
	FailedFirst          bool
	NewFirst             bool
	Stepwise             bool
	StepwiseSkip         bool
	StepwiseReset        bool
}

// DefaultLimit is the number of sessions retained when Options.Limit is
// unset.
const DefaultLimit = 100

// effective resolves the convenience flags into the rerun and order
// category lists, the empty-selection fallback, and the stop-after-N
// failure threshold the host should apply (0 means unlimited).
func (o Options) effective() (rerun, order string, allIfNone bool, maxFail int) {
	allIfNone = true
	switch {
	case o.Rerun != "":
		rerun = o.Rerun
	case o.LastFailed:
		allIfNone = o.LastFailedNoFailures != "none"
		rerun = "failed,error"
	case o.StepwiseSkip:
		rerun = "failed,error,pending,new"
		maxFail = 2
	case o.StepwiseReset:
		rerun = ""
		maxFail = 1
	case o.Stepwise:
		rerun = "failed,error,pending,new"
		maxFail = 1
	}

	switch {
	case o.RerunOrder != "":
		order = o.RerunOrder
	case o.FailedFirst:
		order = "failed,error"
	case o.NewFirst:
		order = "new"
	}
	return rerun, order, allIfNone, maxFail
}

// FromConfig populates Options from a loaded settings file. Recognized
// keys: sessions_dir, sessions_limit, root, reference, rerun,
// rerun_order, show_session.
func FromConfig(cfg config.Config) Options {
	return Options{
		Dir:         cfg.String("sessions_dir", ""),
		Root:        cfg.String("root", ""),
		Limit:       cfg.Int("sessions_limit", DefaultLimit),
		Reference:   cfg.String("reference", ""),
		Rerun:       cfg.String("rerun", ""),
		RerunOrder:  cfg.String("rerun_order", ""),
		ShowSession: cfg.Bool("show_session", false),
	}
}

// Option customizes a Session or Replayer at construction.
type Option func(*settings)

type settings struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func newSettings(opts []Option) settings {
	s := settings{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger attaches a structured logger. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *settings) { s.metrics = m }
}

// WithSpanManager attaches a trace span manager.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(s *settings) { s.spans = sm }
}
