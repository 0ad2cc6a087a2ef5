package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	envelopesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_envelopes_sent_total",
			Help: "Total envelopes serialized by format",
		},
		[]string{"format"}, // proto|json
	)

	envelopesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_envelopes_received_total",
			Help: "Total envelopes parsed by format",
		},
		[]string{"format"},
	)

	syntaxErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_syntax_errors_total",
			Help: "Total envelopes or payloads rejected as malformed",
		},
		[]string{"format"},
	)

	passThrough = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_passthrough_total",
			Help: "Total payloads of unregistered types carried as generic messages",
		},
		[]string{"format"},
	)

	suppressedReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fmq_suppressed_replies_total",
		Help: "Total replies not sent because the request carried no correlation id",
	})

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_requests_total",
			Help: "Total dispatched requests by reply status",
		},
		[]string{"status"},
	)

	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_conversions_total",
			Help: "Total codec conversions by source and target codec",
		},
		[]string{"from", "to"},
	)

	codecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmq_codec_errors_total",
			Help: "Total codec failures by codec",
		},
		[]string{"codec"},
	)
)

func init() {
	prometheus.MustRegister(
		envelopesSent,
		envelopesReceived,
		syntaxErrors,
		passThrough,
		suppressedReplies,
		requestsTotal,
		conversionsTotal,
		codecErrors,
	)
}

func IncSent(format string)         { envelopesSent.WithLabelValues(format).Inc() }
func IncReceived(format string)     { envelopesReceived.WithLabelValues(format).Inc() }
func IncSyntaxError(format string)  { syntaxErrors.WithLabelValues(format).Inc() }
func IncPassThrough(format string)  { passThrough.WithLabelValues(format).Inc() }
func IncSuppressed()                { suppressedReplies.Inc() }
func IncRequest(status string)      { requestsTotal.WithLabelValues(status).Inc() }
func IncConversion(from, to string) { conversionsTotal.WithLabelValues(from, to).Inc() }
func IncCodecError(codec string)    { codecErrors.WithLabelValues(codec).Inc() }

// 以下供测试读取计数

func SyntaxErrors() *prometheus.CounterVec     { return syntaxErrors }
func PassThrough() *prometheus.CounterVec      { return passThrough }
func SuppressedReplies() prometheus.Counter    { return suppressedReplies }
func RequestsTotal() *prometheus.CounterVec    { return requestsTotal }
func ConversionsTotal() *prometheus.CounterVec { return conversionsTotal }
