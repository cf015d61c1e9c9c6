package configbuilder

import (
	"testing"

	"femtolog/internal/manager"
	"femtolog/internal/record"
	"femtolog/internal/warner"
)

func boolPtr(b bool) *bool { return &b }

// TestSharedHandlerIdentity covers scenario S2: two loggers referencing
// the same handler id must attach the exact same handler instance, so
// its worker (and any backoff/connection state) is shared rather than
// duplicated.
func TestSharedHandlerIdentity(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Handlers: map[string]HandlerSpec{
			"out": {Target: "stdout"},
		},
		Loggers: map[string]LoggerSpec{
			"svc.a": {Handlers: []string{"out"}},
			"svc.b": {Handlers: []string{"out"}},
		},
		Root: &LoggerSpec{},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	a := mgr.GetLogger("svc.a").Handlers()
	b := mgr.GetLogger("svc.b").Handlers()
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected exactly one handler on each logger, got %d and %d", len(a), len(b))
	}
	if a[0] != b[0] {
		t.Fatalf("svc.a and svc.b must share the same handler instance by identity")
	}
}

// TestUnknownHandlerIdentifierFailsClosed covers scenario S3: an unknown
// handler id in a logger config must fail the whole build, and must not
// mutate the manager at all (the atomicity guarantee of step 6).
func TestUnknownHandlerIdentifierFailsClosed(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Handlers: map[string]HandlerSpec{
			"out": {Target: "stdout"},
		},
		Loggers: map[string]LoggerSpec{
			"svc.a": {Handlers: []string{"does-not-exist"}},
		},
		Root: &LoggerSpec{Handlers: []string{"out"}},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err == nil {
		t.Fatalf("expected Build to fail on an unknown handler id")
	}
	if len(mgr.Root().Handlers()) != 0 {
		t.Fatalf("a failed Build must not have mutated the manager's root")
	}
	if len(mgr.Loggers()) != 0 {
		t.Fatalf("a failed Build must not have registered any logger")
	}
}

// TestLevelFilterScenario covers scenario S4: root at DEBUG, child with a
// Level(INFO) filter; the filter lets anything <= max_level through, so
// log(INFO) emits and log(ERROR) is rejected because ERROR > INFO.
func TestLevelFilterScenario(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Filters: map[string]FilterSpec{
			"cap-info": {Level: "INFO"},
		},
		Handlers: map[string]HandlerSpec{
			"out": {Target: "stdout"},
		},
		Loggers: map[string]LoggerSpec{
			"child": {Filters: []string{"cap-info"}, Handlers: []string{"out"}},
		},
		Root: &LoggerSpec{Level: "DEBUG"},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	child := mgr.GetLogger("child")
	if !child.Log(record.Info, "ok") {
		t.Fatalf("an Info record should pass a max_level=Info filter")
	}
	if child.Log(record.Error, "nope") {
		t.Fatalf("an Error record should be rejected by a max_level=Info filter")
	}
}

// TestPropagateToggleScenario builds a config whose child logger sets
// propagate=false and checks that the child still passes its own gate.
// Whether the root's handler receives the record is not observed here
// (the stdout handlers expose no received records); the logger package's
// TestPropagateFalseStopsAtOrigin checks that.
func TestPropagateToggleScenario(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Handlers: map[string]HandlerSpec{
			"root-out":  {Target: "stdout"},
			"child-out": {Target: "stdout"},
		},
		Loggers: map[string]LoggerSpec{
			"child": {Handlers: []string{"child-out"}, Propagate: boolPtr(false)},
		},
		Root: &LoggerSpec{Handlers: []string{"root-out"}},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	child := mgr.GetLogger("child")
	if !child.Log(record.Info, "stays local") {
		t.Fatalf("child.Log should pass its own gate")
	}
}

// TestDisableExistingLoggersPreservesMentionedAndAncestors covers the
// disable_existing_loggers semantics of step 5: a logger not mentioned in
// the new config, and not an ancestor of a mentioned one, is disabled and
// has its handlers cleared; a mentioned logger (and its ancestors) are
// left alone.
func TestDisableExistingLoggersPreservesMentionedAndAncestors(t *testing.T) {
	mgr := manager.New()
	stale := mgr.GetLogger("stale")
	ancestor := mgr.GetLogger("svc")
	_ = mgr.GetLogger("svc.child")

	cfg := &Config{
		Version:                1,
		DisableExistingLoggers: true,
		Handlers: map[string]HandlerSpec{
			"out": {Target: "stdout"},
		},
		Loggers: map[string]LoggerSpec{
			"svc.child": {Handlers: []string{"out"}},
		},
		Root: &LoggerSpec{},
	}
	w := warner.New(0)
	if err := Build(cfg, mgr, w); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !stale.Disabled() {
		t.Fatalf("a logger not mentioned and not an ancestor of a mentioned logger should be disabled")
	}
	if ancestor.Disabled() {
		t.Fatalf("an ancestor of a mentioned logger must not be disabled")
	}
}

func TestInvalidVersionRejected(t *testing.T) {
	cfg := &Config{Version: 2, Root: &LoggerSpec{}}
	if err := Build(cfg, manager.New(), nil); err == nil {
		t.Fatalf("expected a version mismatch to fail Build")
	}
}

func TestMissingRootRejected(t *testing.T) {
	cfg := &Config{Version: 1}
	if err := Build(cfg, manager.New(), nil); err == nil {
		t.Fatalf("expected a missing root to fail Build")
	}
}

// TestDefaultLevelAppliesToRootWhenUnset covers Config.DefaultLevel: root
// configs that omit their own level fall back to it instead of silently
// keeping whatever level the manager happened to start with.
func TestDefaultLevelAppliesToRootWhenUnset(t *testing.T) {
	cfg := &Config{
		Version:      1,
		DefaultLevel: "WARNING",
		Root:         &LoggerSpec{},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := mgr.Root().EffectiveLevel(); got != record.Warn {
		t.Fatalf("root effective level = %v, want %v (from default_level)", got, record.Warn)
	}
}

// TestDefaultLevelDoesNotOverrideExplicitRootLevel covers Config.DefaultLevel:
// an explicit root level always wins over the fallback.
func TestDefaultLevelDoesNotOverrideExplicitRootLevel(t *testing.T) {
	cfg := &Config{
		Version:      1,
		DefaultLevel: "WARNING",
		Root:         &LoggerSpec{Level: "DEBUG"},
	}
	mgr := manager.New()
	if err := Build(cfg, mgr, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := mgr.Root().EffectiveLevel(); got != record.Debug {
		t.Fatalf("root effective level = %v, want %v (explicit level)", got, record.Debug)
	}
}

// TestInvalidDefaultLevelRejected covers Config.DefaultLevel validation: an
// unparseable value fails the whole build rather than being silently
// ignored.
func TestInvalidDefaultLevelRejected(t *testing.T) {
	cfg := &Config{
		Version:      1,
		DefaultLevel: "not-a-level",
		Root:         &LoggerSpec{},
	}
	if err := Build(cfg, manager.New(), nil); err == nil {
		t.Fatalf("expected an invalid default_level to fail Build")
	}
}

func TestDuplicateHandlerIdRejected(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Handlers: map[string]HandlerSpec{
			"out": {Target: "stdout"},
		},
		Root: &LoggerSpec{Handlers: []string{"out", "out"}},
	}
	if err := Build(cfg, manager.New(), nil); err == nil {
		t.Fatalf("expected a duplicate handler id in one logger's list to fail Build")
	}
}
