package notification

// Kind identifies an operator alert.
type Kind string

const (
	KindSyncFailed       Kind = "sync_failed"
	KindDuplicateAccount Kind = "duplicate_account"
)

// Alert is one push notification to the operator topic
type Alert struct {
	Kind  Kind
	Title string
	Body  string
	Data  map[string]string
}

// payload returns the data map sent along with the notification.
func (a Alert) payload() map[string]string {
	data := make(map[string]string, len(a.Data)+1)
	for k, v := range a.Data {
		data[k] = v
	}
	data["kind"] = string(a.Kind)
	return data
}
