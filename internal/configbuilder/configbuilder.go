// Package configbuilder implements the declarative configuration builder
// (spec.md 4.M): a whole-graph description of formatters, filters,
// handlers, and loggers that validates as a unit and installs atomically
// into a manager.Manager.
package configbuilder

import (
	"fmt"
	"os"
	"sort"
	"time"

	"femtolog/internal/ferrors"
	"femtolog/internal/filter"
	"femtolog/internal/handler"
	"femtolog/internal/handler/file"
	"femtolog/internal/handler/httpsink"
	"femtolog/internal/handler/rotate"
	"femtolog/internal/handler/socket"
	"femtolog/internal/handler/stream"
	"femtolog/internal/logger"
	"femtolog/internal/manager"
	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// Config is the root of the declarative graph, decodable from a dict-form
// source (see internal/configfile) or constructed directly in code.
type Config struct {
	Version                int                     `mapstructure:"version"`
	DisableExistingLoggers bool                     `mapstructure:"disable_existing_loggers"`
	DefaultLevel           string                   `mapstructure:"default_level"`
	Formatters             map[string]FormatterSpec `mapstructure:"formatters"`
	Filters                map[string]FilterSpec    `mapstructure:"filters"`
	Handlers               map[string]HandlerSpec   `mapstructure:"handlers"`
	Loggers                map[string]LoggerSpec    `mapstructure:"loggers"`
	Root                   *LoggerSpec              `mapstructure:"root"`
}

// FormatterSpec configures one formatter pool entry. femtolog currently
// ships only the default "{logger} [{LEVEL}] {message}" formatter
// (record.Default); Format/
// Datefmt are accepted for schema compatibility with host bindings but
// presently only select that formatter.
type FormatterSpec struct {
	Format  string `mapstructure:"format"`
	Datefmt string `mapstructure:"datefmt"`
}

// FilterSpec configures one filter pool entry: exactly one of Level or
// Prefix should be set.
type FilterSpec struct {
	Level  string `mapstructure:"level"`
	Prefix string `mapstructure:"prefix"`
}

// RotationSpec configures the file handler's optional rotation strategy.
type RotationSpec struct {
	MaxBytes    int64 `mapstructure:"max_bytes"`
	BackupCount int   `mapstructure:"backup_count"`
	Compress    bool  `mapstructure:"compress"`
}

// TLSSpec configures the socket handler's optional TLS wrapper.
type TLSSpec struct {
	Domain             string `mapstructure:"domain"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// HandlerSpec configures one handler pool entry. Target selects the sink
// kind: "stdout", "stderr", "file", "socket", "http".
type HandlerSpec struct {
	Target string `mapstructure:"target"`

	Path string `mapstructure:"path"` // file, unix socket
	URL  string `mapstructure:"url"`  // http

	Host    string `mapstructure:"host"` // socket
	Port    int    `mapstructure:"port"`
	Network string `mapstructure:"network"` // "tcp" | "unix"
	TLS     *TLSSpec `mapstructure:"tls"`

	Capacity        int    `mapstructure:"capacity"`
	FlushTimeoutMS  int    `mapstructure:"flush_timeout_ms"`
	Overflow        string `mapstructure:"overflow"` // "drop" | "block" | "timeout"
	OverflowTimeout int    `mapstructure:"overflow_timeout_ms"`

	Rotation *RotationSpec `mapstructure:"rotation"`

	Method       string            `mapstructure:"method"`
	AuthKind     string            `mapstructure:"auth"` // "none" | "basic" | "bearer"
	AuthUser     string            `mapstructure:"auth_user"`
	AuthPassword string            `mapstructure:"auth_password"`
	AuthToken    string            `mapstructure:"auth_token"`
	Headers      map[string]string `mapstructure:"headers"`
	Serializer   string            `mapstructure:"serialization"` // "json" | "urlencoded"
	RecordFields []string          `mapstructure:"record_fields"`
	MaxFrameSize int               `mapstructure:"max_frame_size"`
}

// LoggerSpec configures one logger (named or root).
type LoggerSpec struct {
	Level     string   `mapstructure:"level"`
	Filters   []string `mapstructure:"filters"`
	Handlers  []string `mapstructure:"handlers"`
	Propagate *bool    `mapstructure:"propagate"`
}

// overflowPolicy maps Overflow to a worker policy: an empty or unrecognized
// value means Drop, and "timeout" without a positive overflow_timeout_ms
// waits 1000ms.
func (h HandlerSpec) overflowPolicy() worker.Overflow {
	switch h.Overflow {
	case "block":
		return worker.BlockPolicy()
	case "timeout":
		ms := h.OverflowTimeout
		if ms <= 0 {
			ms = 1000
		}
		return worker.TimeoutPolicy(time.Duration(ms) * time.Millisecond)
	default:
		return worker.DropPolicy()
	}
}

// Builder holds the in-progress pools populated by Build's steps 1-4,
// kept separate from Manager mutation so a failure at any of those steps
// leaves the manager untouched (spec.md 4.M step 6).
type builder struct {
	cfg        *Config
	warner     *warner.Warner
	formatters map[string]record.Formatter
	filters    map[string]filter.Filter
	handlers   map[string]handlerEntry
	// defaultLevel is the root's fallback level (default_level) when its
	// LoggerSpec omits one; nil means "leave root's existing level alone".
	defaultLevel *record.Severity
}

// handlerEntry pairs a built handler instance with the overflow policy
// its HandlerSpec configured, so every logger that attaches it by id
// enqueues under the same policy.
type handlerEntry struct {
	h      handler.Handler
	policy worker.Overflow
}

// Build validates cfg as a whole graph and, only if every validation step
// succeeds, atomically installs it into mgr. w is used by filters/
// handlers that record rate-limited drop warnings; nil is accepted (no
// warnings recorded).
func Build(cfg *Config, mgr *manager.Manager, w *warner.Warner) error {
	if cfg.Version != 1 {
		return fmt.Errorf("%w: got %d", ferrors.ErrInvalidVersion, cfg.Version)
	}
	if cfg.Root == nil {
		return ferrors.ErrMissingRoot
	}

	b := &builder{cfg: cfg, warner: w}
	if cfg.DefaultLevel != "" {
		sev, err := record.ParseSeverity(cfg.DefaultLevel)
		if err != nil {
			return fmt.Errorf("%w: default_level %q: %v", ferrors.ErrBuilderFailed, cfg.DefaultLevel, err)
		}
		b.defaultLevel = &sev
	}
	if err := b.buildFormatters(); err != nil {
		return err
	}
	if err := b.buildFilters(); err != nil {
		return err
	}
	if err := b.buildHandlers(); err != nil {
		return err
	}

	allSpecs := make(map[string]LoggerSpec, len(cfg.Loggers)+1)
	for name, spec := range cfg.Loggers {
		allSpecs[name] = spec
	}
	if err := validateRefs(*cfg.Root, b); err != nil {
		return err
	}
	for name, spec := range allSpecs {
		if err := validateRefs(spec, b); err != nil {
			return fmt.Errorf("logger %q: %w", name, err)
		}
	}

	apply(mgr, cfg, b, allSpecs)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *builder) buildFormatters() error {
	b.formatters = make(map[string]record.Formatter, len(b.cfg.Formatters))
	for _, id := range sortedKeys(b.cfg.Formatters) {
		// femtolog ships one formatter implementation today; the id still
		// occupies the pool so configs written for host bindings with
		// richer formatter schemas load. No LoggerSpec or HandlerSpec field
		// references a formatter id; every handler uses record.Default.
		b.formatters[id] = record.Default
	}
	return nil
}

func (b *builder) buildFilters() error {
	b.filters = make(map[string]filter.Filter, len(b.cfg.Filters))
	for _, id := range sortedKeys(b.cfg.Filters) {
		spec := b.cfg.Filters[id]
		switch {
		case spec.Level != "":
			sev, err := record.ParseSeverity(spec.Level)
			if err != nil {
				return fmt.Errorf("%w: filter %q: %v", ferrors.ErrBuilderFailed, id, err)
			}
			b.filters[id] = filter.Level(sev, b.warner)
		case spec.Prefix != "":
			b.filters[id] = filter.Name(spec.Prefix)
		default:
			return fmt.Errorf("%w: filter %q: neither level nor prefix set", ferrors.ErrBuilderFailed, id)
		}
	}
	return nil
}

func (b *builder) buildHandlers() error {
	b.handlers = make(map[string]handlerEntry, len(b.cfg.Handlers))
	for _, id := range sortedKeys(b.cfg.Handlers) {
		spec := b.cfg.Handlers[id]
		h, err := buildHandler(spec, b.warner)
		if err != nil {
			return fmt.Errorf("%w: handler %q: %v", ferrors.ErrBuilderFailed, id, err)
		}
		b.handlers[id] = handlerEntry{h: h, policy: spec.overflowPolicy()}
	}
	return nil
}

func buildHandler(spec HandlerSpec, w *warner.Warner) (handler.Handler, error) {
	switch spec.Target {
	case "stdout":
		return stream.New(os.Stdout, stream.WithWarner(w)), nil
	case "stderr":
		return stream.New(os.Stderr, stream.WithWarner(w)), nil
	case "file":
		if spec.Path == "" {
			return nil, fmt.Errorf("file handler requires path")
		}
		opts := []file.Option{file.WithWarner(w)}
		if spec.Rotation != nil {
			opts = append(opts, file.WithRotation(&rotate.Size{
				Path:            spec.Path,
				MaxBytes:        spec.Rotation.MaxBytes,
				BackupCount:     spec.Rotation.BackupCount,
				CompressBackups: spec.Rotation.Compress,
			}))
		}
		return file.New(spec.Path, opts...)
	case "socket":
		var transport socket.Transport
		switch spec.Network {
		case "unix":
			transport = socket.UnixTransport{Path: spec.Path}
		default:
			var tlsCfg *socket.TLSConfig
			if spec.TLS != nil {
				tlsCfg = &socket.TLSConfig{Domain: spec.TLS.Domain, InsecureSkipVerify: spec.TLS.InsecureSkipVerify}
			}
			transport = socket.TCPTransport{Host: spec.Host, Port: spec.Port, TLS: tlsCfg}
		}
		opts := []socket.Option{socket.WithWarner(w)}
		if spec.MaxFrameSize > 0 {
			opts = append(opts, socket.WithMaxFrameSize(spec.MaxFrameSize))
		}
		return socket.New(transport, opts...), nil
	case "http":
		if spec.URL == "" {
			return nil, fmt.Errorf("http handler requires url")
		}
		opts := []httpsink.Option{httpsink.WithWarner(w)}
		if spec.Method == "GET" {
			opts = append(opts, httpsink.WithMethod(httpsink.MethodGet))
		}
		if spec.Serializer == "urlencoded" {
			opts = append(opts, httpsink.WithSerialization(httpsink.UrlEncoded))
		}
		switch spec.AuthKind {
		case "basic":
			opts = append(opts, httpsink.WithAuth(httpsink.Auth{Kind: httpsink.AuthBasic, User: spec.AuthUser, Password: spec.AuthPassword}))
		case "bearer":
			opts = append(opts, httpsink.WithAuth(httpsink.Auth{Kind: httpsink.AuthBearer, Token: spec.AuthToken}))
		}
		for k, v := range spec.Headers {
			opts = append(opts, httpsink.WithHeader(k, v))
		}
		if len(spec.RecordFields) > 0 {
			opts = append(opts, httpsink.WithRecordFields(spec.RecordFields))
		}
		return httpsink.New(spec.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown handler target %q", spec.Target)
	}
}

func validateRefs(spec LoggerSpec, b *builder) error {
	if err := noDuplicates(spec.Filters); err != nil {
		return err
	}
	if err := noDuplicates(spec.Handlers); err != nil {
		return err
	}
	for _, id := range spec.Filters {
		if _, ok := b.filters[id]; !ok {
			return fmt.Errorf("%w: %q", ferrors.ErrUnknownFilterID, id)
		}
	}
	for _, id := range spec.Handlers {
		if _, ok := b.handlers[id]; !ok {
			return fmt.Errorf("%w: %q", ferrors.ErrUnknownHandlerID, id)
		}
	}
	return nil
}

func noDuplicates(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %q", ferrors.ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// apply performs step 5: atomic install into mgr. Every reference here
// has already been validated, so none of this can fail.
func apply(mgr *manager.Manager, cfg *Config, b *builder, allSpecs map[string]LoggerSpec) {
	if cfg.DisableExistingLoggers {
		mentioned := make(map[string]struct{}, len(allSpecs))
		for name := range allSpecs {
			mentioned[name] = struct{}{}
		}
		for _, existing := range mgr.Loggers() {
			if _, ok := mentioned[existing]; ok {
				continue
			}
			if isAncestorOfAny(existing, mentioned) {
				continue
			}
			l := mgr.GetLogger(existing)
			l.SetDisabled(true)
			l.ClearHandlers()
		}
	}

	for _, name := range sortedKeys(allSpecs) {
		installOne(mgr.GetLogger(name), allSpecs[name], b, nil)
	}
	// default_level only ever substitutes for the root's own level: named
	// loggers with no level set inherit from their nearest leveled ancestor
	// instead, and forcing default_level onto them would break that.
	installOne(mgr.Root(), *cfg.Root, b, b.defaultLevel)
}

// isAncestorOfAny reports whether name is a dotted-name ancestor of any
// logger in mentioned (e.g. "a" is an ancestor of "a.b.c").
func isAncestorOfAny(name string, mentioned map[string]struct{}) bool {
	for m := range mentioned {
		if m == name {
			continue
		}
		if len(m) > len(name) && m[:len(name)] == name && m[len(name)] == '.' {
			return true
		}
	}
	return false
}

// installOne applies spec to l. fallback, when non-nil, is used as l's
// level if spec itself doesn't set one (currently only passed for root, to
// honor Config.DefaultLevel).
func installOne(l *logger.Logger, spec LoggerSpec, b *builder, fallback *record.Severity) {
	l.SetDisabled(false)
	switch {
	case spec.Level != "":
		if sev, err := record.ParseSeverity(spec.Level); err == nil {
			l.SetLevel(sev)
		}
	case fallback != nil:
		l.SetLevel(*fallback)
	}

	fs := make([]filter.Filter, 0, len(spec.Filters))
	for _, id := range spec.Filters {
		fs = append(fs, b.filters[id])
	}
	l.SetFilters(fs)

	bindings := make([]logger.HandlerBinding, 0, len(spec.Handlers))
	for _, id := range spec.Handlers {
		entry := b.handlers[id]
		bindings = append(bindings, logger.HandlerBinding{Handler: entry.h, Policy: entry.policy})
	}
	l.SetHandlerBindings(bindings)

	if spec.Propagate != nil {
		l.SetPropagate(*spec.Propagate)
	}
}
