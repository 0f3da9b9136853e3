package repositories

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mama165/sdk-go/database"
)

// InspectPrefixes are the key families written by the repositories.
var InspectPrefixes = []string{"conv:id:", "conv:pair:", "conv:user:", "msg:", "notif:"}

// InspectMapper renders one stored key for the Badger inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "conv:id:"):
		var c DiskConversation
		if err := json.Unmarshal(val, &c); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "CONVERSATION"
		row.Namespace = "chat"
		row.EntityID = shortID(c.ID.String())
		row.Timestamp = c.CreatedAt.Format("15:04:05")
		row.Detail = fmt.Sprintf("%s <-> %s", c.Members[0], c.Members[1])
		row.Scores = fmt.Sprintf("messages:%d", c.MessageCount)
	case strings.HasPrefix(key, "conv:pair:"):
		row.Type = "PAIR_INDEX"
		row.Namespace = "chat"
		row.EntityID = shortID(string(val))
	case strings.HasPrefix(key, "conv:user:"):
		row.Type = "MEMBER_INDEX"
		row.Namespace = "chat"
		if parts := strings.Split(key, ":"); len(parts) == 4 {
			row.EntityID = shortID(parts[3])
			row.Detail = parts[2]
		}
	case strings.HasPrefix(key, "msg:"):
		var m DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Namespace = "chat"
		row.EntityID = shortID(m.ID.String())
		row.Timestamp = m.At.Format("15:04:05")
		row.Detail = fmt.Sprintf("%s -> %s: %s", m.SenderID, m.ReceiverID, m.Text)
		row.Scores = fmt.Sprintf("seq:%d", m.Seq)
	case strings.HasPrefix(key, "notif:"):
		var n DiskNotification
		if err := json.Unmarshal(val, &n); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "NOTIFICATION"
		row.Namespace = n.Kind
		row.EntityID = shortID(n.ID.String())
		row.Timestamp = n.At.Format("15:04:05")
		row.Detail = fmt.Sprintf("%s -> %s: %s", n.SenderID, n.ReceiverID, n.Message)
		row.Scores = fmt.Sprintf("read:%t", n.IsRead)
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
