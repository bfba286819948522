package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("service.component", service),
		attribute.String("service.operation", operation),
	)
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartClientSpan starts a span for an outbound call to the media library
func StartClientSpan(ctx context.Context, method, endpoint string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("medialibrary %s %s", method, endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("medialibrary.endpoint", endpoint),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceDB wraps sql.DB with spans and query metrics
type TraceDB struct {
	db       *sql.DB
	system   string
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewTraceDB creates a traced database wrapper. system is "postgresql" or "sqlite".
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &TraceDB{db: db, system: system, duration: duration, errors: errCount}, nil
}

func (t *TraceDB) start(ctx context.Context, name, query string) (context.Context, trace.Span, time.Time) {
	ctx, span := StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	return ctx, span, time.Now()
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, op string, started time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", op), attribute.String("db.system", t.system))
	t.duration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if err != nil && err != sql.ErrNoRows {
		t.errors.Add(ctx, 1, attrs)
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.End()
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span, started := t.start(ctx, "DB Query", query)
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(ctx, span, "query", started, err)
	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span, started := t.start(ctx, "DB Exec", query)
	result, err := t.db.ExecContext(ctx, query, args...)
	if err == nil {
		if n, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", n))
		}
	}
	t.finish(ctx, span, "exec", started, err)
	return result, err
}

// QueryRowContext executes a single-row query with tracing. Scan errors are
// not visible here, so the span only covers dispatch.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span, started := t.start(ctx, "DB QueryRow", query)
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, "query_row", started, row.Err())
	return row
}

// BeginTx starts a transaction on the wrapped database
func (t *TraceDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	ctx, span, started := t.start(ctx, "DB Begin", "BEGIN")
	tx, err := t.db.BeginTx(ctx, opts)
	t.finish(ctx, span, "begin", started, err)
	return tx, err
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// BusinessMetrics holds upload pipeline counters. A nil *BusinessMetrics records nothing.
type BusinessMetrics struct {
	negotiations    metric.Int64Counter
	finalizedItems  metric.Int64Counter
	mirrorWrites    metric.Int64Counter
	orphanedAlbums  metric.Int64Counter
	magicLinks      metric.Int64Counter
	downloadsIssued metric.Int64Counter
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &BusinessMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.negotiations, "weddingphotos.upload.negotiations", "Upload sessions negotiated", "{sessions}"},
		{&m.finalizedItems, "weddingphotos.upload.finalized_items", "Media items materialized by batch finalize", "{items}"},
		{&m.mirrorWrites, "weddingphotos.mirror.writes", "Metadata mirror sync writes", "{items}"},
		{&m.orphanedAlbums, "weddingphotos.album.orphaned", "Provider albums created without a local row", "{albums}"},
		{&m.magicLinks, "weddingphotos.auth.magic_links", "Sign-in links issued and redeemed", "{links}"},
		{&m.downloadsIssued, "weddingphotos.download.urls", "Download URLs minted", "{urls}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

// RecordNegotiation counts an upload negotiation
func (m *BusinessMetrics) RecordNegotiation(ctx context.Context, files int, success bool) {
	if m == nil {
		return
	}
	m.negotiations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("files", files),
		attribute.Bool("success", success),
	))
}

// RecordFinalize counts materialized and failed items of a batch
func (m *BusinessMetrics) RecordFinalize(ctx context.Context, created, total int) {
	if m == nil {
		return
	}
	m.finalizedItems.Add(ctx, int64(created), metric.WithAttributes(attribute.String("status", "created")))
	if failed := total - created; failed > 0 {
		m.finalizedItems.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("status", "failed")))
	}
}

// RecordMirrorWrite counts items written (or not) by a mirror sync
func (m *BusinessMetrics) RecordMirrorWrite(ctx context.Context, items int, success bool) {
	if m == nil {
		return
	}
	m.mirrorWrites.Add(ctx, int64(items), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordOrphanedAlbum counts a provider album left without a local row
func (m *BusinessMetrics) RecordOrphanedAlbum(ctx context.Context) {
	if m == nil {
		return
	}
	m.orphanedAlbums.Add(ctx, 1)
}

// RecordMagicLink counts a sign-in link event ("issued", "redeemed", "rejected")
func (m *BusinessMetrics) RecordMagicLink(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.magicLinks.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordDownloadURL counts minted download URLs
func (m *BusinessMetrics) RecordDownloadURL(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.downloadsIssued.Add(ctx, int64(count))
}
