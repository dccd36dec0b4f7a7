package types

import "time"

type MessageSender string

const (
	SenderStaff     MessageSender = "Staff"
	SenderApplicant MessageSender = "Applicant"
)

// Other returns the opposite party in a two-party conversation.
func (s MessageSender) Other() MessageSender {
	if s == SenderStaff {
		return SenderApplicant
	}
	return SenderStaff
}

// Message is one entry in the per-application conversation between the
// applicant and staff. IsRead is the only mutable field and only ever
// transitions false to true, set by the recipient side.
type Message struct {
	ID            string        `db:"id"`
	ApplicationID string        `db:"application_id"`
	SenderID      string        `db:"sender_id"`
	SenderName    string        `db:"sender_name"`
	SenderType    MessageSender `db:"sender_type"`
	Body          string        `db:"body"`
	IsRead        bool          `db:"is_read"`
	ReadAt        *time.Time    `db:"read_at"`
	Timestamp     time.Time     `db:"timestamp"`
}

// UnreadFor folds a conversation into the unread count for one party: the
// number of messages the other party sent that have not been read yet.
func UnreadFor(msgs []*Message, recipient MessageSender) int {
	var n int
	for _, m := range msgs {
		if m.SenderType == recipient.Other() && !m.IsRead {
			n++
		}
	}
	return n
}
