package models

// Channel represents a conversation stream within a community.
// Threads are not stored; a thread's listen status resolves to its
// parent channel.
type Channel struct {
	ID          string `db:"id" json:"id"`
	CommunityID string `db:"community_id" json:"community_id"`
	Listen      bool   `db:"listen" json:"listen"`
}
