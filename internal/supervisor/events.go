package supervisor

// EventType tags a supervision event.
type EventType string

const (
	EventStarting   EventType = "service.starting"
	EventRunning    EventType = "service.running"
	EventExited     EventType = "service.exited"
	EventFailed     EventType = "service.failed"
	EventRestarting EventType = "service.restarting"
	EventBlocked    EventType = "service.blocked"
	EventStopped    EventType = "service.stopped"
)

// Event is a single supervision state change.
type Event struct {
	Type    EventType
	Service string
	Phase   Phase
	Message string
}
