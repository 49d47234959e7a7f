package model

// ThreadNode is one message of an assembled conversation tree.
type ThreadNode struct {
	Message  *Message      `json:"message"`
	Children []*ThreadNode `json:"children"`
}

// Size counts the messages in the subtree rooted at n.
func (n *ThreadNode) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

// CleanupSummary reports what a user deletion removed.
type CleanupSummary struct {
	MessageHistories      int64 `json:"message_histories"`
	MessagesSent          int64 `json:"messages_sent"`
	MessagesReceived      int64 `json:"messages_received"`
	Notifications         int64 `json:"notifications"`
	LinkedNotifications   int64 `json:"linked_notifications"`
	RepliesDetached       int64 `json:"replies_detached"`
}

// TotalDeleted is the number of rows removed. Detached replies are kept and
// not counted.
func (s CleanupSummary) TotalDeleted() int64 {
	return s.MessageHistories + s.MessagesSent + s.MessagesReceived +
		s.Notifications + s.LinkedNotifications
}
