package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders flow metrics in the Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// New returns an exporter reading from flow.
func New(flow *authflow.Flow) *Exporter {
	return &Exporter{source: flow}
}

// NewFromSource returns an exporter over any snapshot source.
func NewFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

var _ http.Handler = (*Exporter)(nil)

// ServeHTTP writes the exposition text, so an Exporter can be mounted
// directly on a mux.
func (p *Exporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = p.WriteTo(w)
}

// Handler returns p as an [http.Handler].
func (p *Exporter) Handler() http.Handler { return p }

// Render returns the current metrics, or "" when metrics are disabled.
func (p *Exporter) Render() string {
	var buf bytes.Buffer
	_, _ = p.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes the current metrics to w. Nothing is written when metrics
// are disabled.
func (p *Exporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	ew := &errWriter{w: w}
	for _, def := range internaldefs.CounterDefs {
		ew.header(def.Name, def.Help, "counter")
		ew.printf("%s %d\n", def.Name, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		ew.header(def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			ew.printf("%s_bucket{le=%q} %d\n", def.Name, le, cum[i])
		}
		ew.printf("%s_count %d\n", def.Name, cum[len(cum)-1])
		// Snapshots carry bucket counts only.
		ew.printf("%s_sum 0\n", def.Name)
	}
	ew.header(internaldefs.AuditDroppedName, "Audit events dropped because the dispatcher buffer was full.", "counter")
	ew.printf("%s %d\n", internaldefs.AuditDroppedName, dropped)
	return ew.n, ew.err
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	n, err := fmt.Fprintf(e.w, format, args...)
	e.n += int64(n)
	e.err = err
}

func (e *errWriter) header(name, help, kind string) {
	e.printf("# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
