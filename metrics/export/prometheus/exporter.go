package prometheus

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *astaauth.Engine
// implements it.
type Source interface {
	MetricsSnapshot() astaauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders a Source on demand. It keeps no state between scrapes.
type Exporter struct {
	source Source
}

// NewExporter renders snapshots taken from source on every scrape.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render with the Prometheus text content type.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. With metrics disabled and nothing
// dropped it returns an empty string.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	family := ""
	for _, def := range internaldefs.CounterDefs {
		if def.Name != family {
			writeHeader(&b, def.Name, def.Help, "counter")
			family = def.Name
		}
		writeSample(&b, def.Name, labelPair(def.LabelKey, def.LabelValue), snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def, internaldefs.CumulativeBuckets(raw), snapshot.HistogramSums[def.ID])
	}

	writeHeader(&b, internaldefs.AuditDroppedName, "Audit events dropped under dispatcher backpressure.", "counter")
	writeSample(&b, internaldefs.AuditDroppedName, "", dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, labels string, value uint64) {
	b.WriteString(name)
	if labels != "" {
		b.WriteByte('{')
		b.WriteString(labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, def internaldefs.HistogramDef, cumulative [internaldefs.BucketCount]uint64, sum time.Duration) {
	writeHeader(b, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, def.Name+"_bucket", labelPair("le", le), cumulative[i])
	}
	writeSample(b, def.Name+"_count", "", cumulative[internaldefs.BucketCount-1])
	b.WriteString(def.Name)
	b.WriteString("_sum ")
	b.WriteString(strconv.FormatFloat(sum.Seconds(), 'g', -1, 64))
	b.WriteByte('\n')
}

func labelPair(key, value string) string {
	if key == "" {
		return ""
	}
	return key + `="` + value + `"`
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
