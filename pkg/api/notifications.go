package api

// Notification event and entity kinds recorded by the server during sync.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"

	EntityList      = "list"
	EntityField     = "field"
	EntityItem      = "item"
	EntityItemValue = "itemValue"
)

// Notification is one change event. DeviceIDOrigin is set when the syncing
// client identified itself with an X-Device-Id header, so clients can skip
// their own events.
type Notification struct {
	ID             string `json:"id"`
	DeviceIDOrigin string `json:"deviceIdOrigin,omitempty"`
	EventType      string `json:"eventType"`
	EntityType     string `json:"entityType"`
	EntityID       string `json:"entityId,omitempty"`
	ListID         string `json:"listId,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// NotificationsResponse is returned by GET /api/notifications/poll.
type NotificationsResponse struct {
	Notifications   []Notification `json:"notifications"`
	ServerTimestamp int64          `json:"serverTimestamp"`
}
