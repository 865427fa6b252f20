package domain

type ConnectionState int

const (
	ConnectionConnecting ConnectionState = iota
	ConnectionLive
	ConnectionDegraded
)

type DeliveryMode string

const (
	DeliveryLive    DeliveryMode = "live"
	DeliveryPolling DeliveryMode = "polling"
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnecting:
		return "connecting"
	case ConnectionLive:
		return "live"
	case ConnectionDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Mode collapses the state into what the user sees: only Live is live.
func (s ConnectionState) Mode() DeliveryMode {
	if s == ConnectionLive {
		return DeliveryLive
	}
	return DeliveryPolling
}
