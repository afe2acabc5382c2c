package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from client.
func NewPrometheusExporter(client *authflow.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes one exposition document. It is empty while the client has
// metrics disabled and no audit drops.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w writer
	w.Grow(8192)

	w.header(internaldefs.RequestsFamily, internaldefs.RequestsFamilyHelp, "counter")
	for _, s := range internaldefs.FlowSamples {
		w.sample(internaldefs.RequestsFamily, "", strconv.FormatUint(snap.Counters[s.ID], 10),
			internaldefs.FlowLabel, s.Flow,
			internaldefs.OutcomeLabel, s.Outcome)
	}

	for _, def := range internaldefs.CounterDefs {
		w.header(def.Name, def.Help, "counter")
		w.sample(def.Name, "", strconv.FormatUint(snap.Counters[def.ID], 10))
	}

	w.header(internaldefs.ActiveCooldownsName, internaldefs.ActiveCooldownsHelp, "gauge")
	w.sample(internaldefs.ActiveCooldownsName, "", strconv.FormatInt(snap.ActiveCooldowns, 10))

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(snap.Histograms[def.ID])
		w.header(def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			w.sample(def.Name, "_bucket", strconv.FormatUint(cumulative[i], 10), "le", le)
		}
		w.sample(def.Name, "_count", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
		// Snapshots carry no sum.
		w.sample(def.Name, "_sum", "0")
	}

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", strconv.FormatUint(dropped, 10))

	return w.String()
}

type writer struct {
	strings.Builder
}

func (w *writer) header(name, help, kind string) {
	w.WriteString("# HELP ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(escapeHelp(help))
	w.WriteString("\n# TYPE ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(kind)
	w.WriteByte('\n')
}

// sample writes name+suffix with labels given as key, value pairs.
func (w *writer) sample(name, suffix, value string, labels ...string) {
	w.WriteString(name)
	w.WriteString(suffix)
	if len(labels) > 0 {
		w.WriteByte('{')
		for i := 0; i+1 < len(labels); i += 2 {
			if i > 0 {
				w.WriteByte(',')
			}
			w.WriteString(labels[i])
			w.WriteString(`="`)
			w.WriteString(escapeLabel(labels[i+1]))
			w.WriteByte('"')
		}
		w.WriteByte('}')
	}
	w.WriteByte(' ')
	w.WriteString(value)
	w.WriteByte('\n')
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)

func escapeHelp(help string) string { return helpEscaper.Replace(help) }

func escapeLabel(v string) string { return labelEscaper.Replace(v) }
