// internal/webhooks/topic.go
package webhooks

// Topic is the typed form of the platform's event topic header. Anything this
// subsystem does not act on maps to TopicUnknown and is acknowledged untouched.
type Topic int

const (
	TopicUnknown Topic = iota
	TopicAppUninstalled
)

func ParseTopic(s string) Topic {
	switch s {
	case "app/uninstalled":
		return TopicAppUninstalled
	default:
		return TopicUnknown
	}
}

func (t Topic) String() string {
	switch t {
	case TopicAppUninstalled:
		return "app/uninstalled"
	default:
		return "unknown"
	}
}
