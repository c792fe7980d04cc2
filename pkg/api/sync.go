// Package api contains the wire types shared by the tabsync client and server.
package api

// List is the root of a collaborative table.
type List struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	IsDeleted bool   `json:"isDeleted"`
}

// Field is a column definition of a list. FieldType and FieldOptions are
// opaque to the server; only the client interprets them.
type Field struct {
	ID           string `json:"id"`
	ListID       string `json:"listId"`
	Name         string `json:"name"`
	FieldType    string `json:"fieldType"`
	FieldOptions string `json:"fieldOptions"`
	Order        int    `json:"order"`
	Alignment    string `json:"alignment"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	IsDeleted    bool   `json:"isDeleted"`
}

// Item is a row of a list.
type Item struct {
	ID        string `json:"id"`
	ListID    string `json:"listId"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	IsDeleted bool   `json:"isDeleted"`
}

// ItemValue is a single cell. It has no tombstone flag: deletion is implied
// by the deletion of its parent item or field. The primary key for sync is
// ID, not the (itemId, fieldId) pair.
type ItemValue struct {
	ID        string `json:"id"`
	ItemID    string `json:"itemId"`
	FieldID   string `json:"fieldId"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SyncRequest carries the client's local changes since its watermark.
// LastSyncTimestamp is an inclusive lower bound in milliseconds since epoch;
// zero means a fresh client requesting full hydration.
type SyncRequest struct {
	LastSyncTimestamp int64       `json:"lastSyncTimestamp"`
	Lists             []List      `json:"lists"`
	Fields            []Field     `json:"fields"`
	Items             []Item      `json:"items"`
	ItemValues        []ItemValue `json:"itemValues"`
}

// SyncResponse carries the server-side delta back to the client together
// with the new watermark.
type SyncResponse struct {
	Lists           []List      `json:"lists"`
	Fields          []Field     `json:"fields"`
	Items           []Item      `json:"items"`
	ItemValues      []ItemValue `json:"itemValues"`
	ServerTimestamp int64       `json:"serverTimestamp"`
}

// ErrorResponse is the JSON body of any non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}
