package repo

// Notification types fanned out to observers
const (
	NotifyStats   = "stats"
	NotifySession = "session"
	NotifyLog     = "log"
	NotifyCommand = "command"
	NotifyUser    = "user"
	NotifyThread  = "thread"
)

// Notifier fans out typed notifications to observers. Delivery is
// best-effort and must never block the caller on a slow observer.
type Notifier interface {
	Notify(kind string, data any)
}

// NopNotifier discards notifications
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(string, any) {}
