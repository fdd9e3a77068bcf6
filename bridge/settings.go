package bridge

// BrokerSettings configures the AMQP side of the bridge, following the
// aws_mq section of the original bridge's INI configuration.
type BrokerSettings struct {
	URL         string
	QueueToWS   string
	QueueFromWS string
	ConsumerTag string
	MaxRetries  int
	// TTLFromWS is the message expiration published on the queue the bridge
	// feeds from WebSocket traffic, in milliseconds.
	TTLFromWS int
}

// WebSocketSettings configures the signed-URL WebSocket side of the bridge,
// following the ws_api section of the original INI configuration.
type WebSocketSettings struct {
	URL                string
	KeyID              string
	SecretKey          string
	Region             string
	Stub               bool
	PingIntervalSecs   int
	MaxConnectAttempts int
	AttemptWindowSecs  int
}

// ObservabilitySettings configures logging and metrics, following the
// aws_cloudwatch section of the original INI configuration.
type ObservabilitySettings struct {
	Verbose             bool
	Debug               bool
	CloudWatchLogs      bool
	CloudWatchMetrics   bool
	CWRegion            string
	CWLogGroup          string
	CWLogStream         string
	CWMetricsNamespace  string
	CWMetricsResolution int
	CWRetentionDays     int
}

// Settings is the immutable record the supervisor hands to every handler at
// startup.
type Settings struct {
	Broker  BrokerSettings
	WS      WebSocketSettings
	Obs     ObservabilitySettings
	RunSecs int
}

// DefaultSettings returns the settings the source code falls back to when a
// value is absent from both the INI file and SSM.
func DefaultSettings() Settings {
	return Settings{
		Broker: BrokerSettings{
			ConsumerTag: "mqhandler",
			MaxRetries:  5,
			TTLFromWS:   300000,
		},
		WS: WebSocketSettings{
			Region:             "ny",
			PingIntervalSecs:   10,
			MaxConnectAttempts: 10,
			AttemptWindowSecs:  60,
		},
		Obs: ObservabilitySettings{
			CWMetricsResolution: 10,
			CWRetentionDays:     30,
		},
	}
}
