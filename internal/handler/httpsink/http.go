// Package httpsink implements the HTTP handler (spec.md 4.J): one request
// per record, GET or POST, with the same backoff state machine the
// socket handler uses for transient failures, grounded on
// internal/sink/http.go's retry-with-backoff shape.
package httpsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"femtolog/internal/backoff"
	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// Method is the HTTP verb used to deliver records.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Serialization selects the request body (POST) or query-string (GET)
// encoding of a record.
type Serialization int

const (
	Json Serialization = iota
	UrlEncoded
)

// AuthKind selects the Authorization header, if any.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// Auth configures the optional Authorization header.
type Auth struct {
	Kind     AuthKind
	User     string
	Password string
	Token    string
}

// DefaultConnectTimeout bounds dialing and TLS handshake.
const DefaultConnectTimeout = 5 * time.Second

// DefaultWriteTimeout bounds the full request round trip.
const DefaultWriteTimeout = 30 * time.Second

// Handler posts or gets one record per request against a fixed URL,
// retrying transient failures with exponential backoff and dropping
// permanent ones (4xx other than 429).
type Handler struct {
	rt *worker.Runtime[record.Record]

	url          string
	method       Method
	auth         Auth
	headers      map[string]string
	serializer   Serialization
	recordFields map[string]struct{} // nil means "emit everything"

	client *http.Client

	warner      *warner.Warner
	backoff     *backoff.State
	nextAttempt time.Time
}

type config struct {
	capacity       int
	flushTimeout   time.Duration
	method         Method
	auth           Auth
	headers        map[string]string
	serializer     Serialization
	recordFields   []string
	connectTimeout time.Duration
	writeTimeout   time.Duration
	backoffPolicy  backoff.Policy
	warner         *warner.Warner
}

// Option configures a Handler at construction time.
type Option func(*config)

func WithCapacity(n int) Option { return func(c *config) { c.capacity = n } }

func WithFlushTimeout(d time.Duration) Option { return func(c *config) { c.flushTimeout = d } }

func WithMethod(m Method) Option { return func(c *config) { c.method = m } }

func WithAuth(a Auth) Option { return func(c *config) { c.auth = a } }

func WithHeader(key, value string) Option {
	return func(c *config) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

func WithSerialization(s Serialization) Option { return func(c *config) { c.serializer = s } }

// WithRecordFields restricts the emitted record field set to the given
// allow-list; an empty/nil list (the default) emits every field.
func WithRecordFields(fields []string) Option { return func(c *config) { c.recordFields = fields } }

func WithConnectTimeout(d time.Duration) Option { return func(c *config) { c.connectTimeout = d } }

func WithWriteTimeout(d time.Duration) Option { return func(c *config) { c.writeTimeout = d } }

func WithBackoffPolicy(p backoff.Policy) Option { return func(c *config) { c.backoffPolicy = p } }

func WithWarner(w *warner.Warner) Option { return func(c *config) { c.warner = w } }

// New starts an HTTP handler's worker goroutine posting/getting against
// targetURL.
func New(targetURL string, opts ...Option) *Handler {
	cfg := config{
		capacity:       worker.DefaultCapacity,
		flushTimeout:   worker.DefaultFlushTimeout,
		method:         MethodPost,
		serializer:     Json,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		backoffPolicy:  backoff.DefaultPolicy(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	var fieldSet map[string]struct{}
	if len(cfg.recordFields) > 0 {
		fieldSet = make(map[string]struct{}, len(cfg.recordFields))
		for _, f := range cfg.recordFields {
			fieldSet[f] = struct{}{}
		}
	}

	h := &Handler{
		url:          targetURL,
		method:       cfg.method,
		auth:         cfg.auth,
		headers:      cfg.headers,
		serializer:   cfg.serializer,
		recordFields: fieldSet,
		client: &http.Client{
			Timeout: cfg.writeTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: cfg.connectTimeout}).DialContext,
				TLSHandshakeTimeout: cfg.connectTimeout,
			},
		},
		warner:  cfg.warner,
		backoff: backoff.New(cfg.backoffPolicy),
	}
	h.rt = worker.New[record.Record](cfg.capacity, h, cfg.warner, cfg.flushTimeout)
	return h
}

func (h *Handler) Enqueue(r record.Record, policy worker.Overflow) error {
	return h.rt.Enqueue(r, policy)
}

func (h *Handler) Flush() bool { return h.rt.Flush() }

func (h *Handler) Close() { h.rt.Close() }

func (h *Handler) recordDrop(cat warner.Category) {
	if h.warner != nil {
		h.warner.RecordDrop(cat)
	}
}

// fieldMap renders the spec.md 4.J field set, applying the record_fields
// allow-list when one was configured.
func (h *Handler) fieldMap(r record.Record) map[string]any {
	all := map[string]any{
		"name":      r.Logger,
		"levelname": r.Severity.String(),
		"msg":       r.Message,
		"created":   float64(r.Time.UnixNano()) / 1e9,
		"filename":  r.File,
		"lineno":    r.Line,
		"module":    r.ModulePath,
		"thread":    r.ThreadID,
	}
	if r.ThreadName != "" {
		all["threadName"] = r.ThreadName
	}
	for _, kv := range r.SortedFields() {
		all[kv.Key] = kv.Value
	}

	if h.recordFields == nil {
		return all
	}
	out := make(map[string]any, len(h.recordFields))
	for k, v := range all {
		if _, ok := h.recordFields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// encodeQuery renders fields as a URL query string, used both for the
// UrlEncoded serializer and for Json when the method is GET (a GET request
// has no body, so the fields have nowhere else to travel).
func encodeQuery(fields map[string]any) string {
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, fmt.Sprint(v))
	}
	return vals.Encode()
}

func (h *Handler) encode(r record.Record) (body []byte, query string, contentType string, err error) {
	fields := h.fieldMap(r)
	switch h.serializer {
	case Json:
		if h.method == MethodGet {
			return nil, encodeQuery(fields), "", nil
		}
		body, err = json.Marshal(fields)
		return body, "", "application/json", err
	default: // UrlEncoded
		encoded := encodeQuery(fields)
		if h.method == MethodGet {
			return nil, encoded, "", nil
		}
		return []byte(encoded), "", "application/x-www-form-urlencoded", nil
	}
}

// tryRequest performs exactly one HTTP round trip and classifies the
// result as success, transient (retry via backoff), or permanent (drop).
func (h *Handler) tryRequest(r record.Record) (transient bool, err error) {
	body, query, contentType, encErr := h.encode(r)
	if encErr != nil {
		return false, encErr
	}

	reqURL := h.url
	if query != "" {
		sep := "?"
		if contains(reqURL, '?') {
			sep = "&"
		}
		reqURL = reqURL + sep + query
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.client.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(body) > 0 && h.method == MethodPost {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, string(h.method), reqURL, bodyReader)
	if err != nil {
		return false, err
	}
	if contentType != "" && h.method == MethodPost {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	switch h.auth.Kind {
	case AuthBasic:
		req.SetBasicAuth(h.auth.User, h.auth.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+h.auth.Token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return true, err // connection errors are transient
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("http %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("http %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("http %d", resp.StatusCode)
	}
}

func contains(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

// HandleRecord implements worker.Consumer.
func (h *Handler) HandleRecord(r record.Record) error {
	now := time.Now()
	h.backoff.ResetAfterIdle(now)

	if !h.nextAttempt.IsZero() && now.Before(h.nextAttempt) {
		h.recordDrop(warner.CategoryDisconnected)
		return nil
	}

	transient, err := h.tryRequest(r)
	if err == nil {
		h.backoff.RecordSuccess(time.Now())
		h.nextAttempt = time.Time{}
		return nil
	}

	if !transient {
		h.recordDrop(warner.CategoryPermanent)
		return err
	}

	d, ok := h.backoff.NextSleep(time.Now())
	if !ok {
		d = h.backoff.Policy.Base
	}
	h.nextAttempt = time.Now().Add(d)
	h.recordDrop(warner.CategoryWriteError)
	return err
}

// HandleFlush implements worker.Consumer: nothing is buffered beyond one
// in-flight request, which Enqueue/HandleRecord has already resolved by
// the time Flush's command is processed.
func (h *Handler) HandleFlush() error { return nil }

// HandleShutdown implements worker.Consumer.
func (h *Handler) HandleShutdown() error {
	h.client.CloseIdleConnections()
	return nil
}
