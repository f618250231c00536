package observability

// Span names.
const (
	SpanTurn        = "scout.turn"
	SpanAssistant   = "scout.assistant"
	SpanTools       = "scout.tools"
	SpanToolCall    = "scout.tool_call"
	SpanHTTPRequest = "http.request"
)

// Span attribute keys.
const (
	AttrThreadID       = "scout.thread_id"
	AttrModel          = "scout.model"
	AttrToolName       = "scout.tool.name"
	AttrToolCallID     = "scout.tool.call_id"
	AttrToolIsError    = "scout.tool.is_error"
	AttrToolCallCount  = "scout.tool.call_count"
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"
)

const (
	DefaultServiceName  = "scout"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
	DefaultNamespace    = "scout"
)
