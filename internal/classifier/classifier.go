// Package classifier decides which messages are eligible for training and
// maps them to training records. Pure functions, no I/O.
package classifier

import (
	"strings"

	"mimicbot/internal/collector_client"
	"mimicbot/internal/markov_client"
)

// Eligible reports whether a message is human-authored content worth
// training on. Listen-state is checked separately by the channel gate.
func Eligible(msg collector_client.Message) bool {
	if msg.AuthorIsBot || msg.AuthorIsSystem {
		return false
	}
	return strings.TrimSpace(msg.Text) != "" || len(msg.AttachmentURLs) > 0
}

// ToRecord maps a message to a training record. Tags carry the message id,
// the containing thread id when the message lives inside one, the parent
// channel id and the community id, so records can later be removed by
// message id alone or in bulk by channel/thread id.
func ToRecord(msg collector_client.Message, parentChannelID, communityID string) markov_client.TrainingRecord {
	tags := make([]string, 0, 4)
	tags = append(tags, msg.ID)
	if msg.ChannelID != "" && msg.ChannelID != parentChannelID {
		tags = append(tags, msg.ChannelID)
	}
	tags = append(tags, parentChannelID, communityID)

	record := markov_client.TrainingRecord{
		Text: msg.Text,
		Tags: tags,
	}
	if len(msg.AttachmentURLs) > 0 {
		record.Custom = &markov_client.CustomData{Attachments: msg.AttachmentURLs}
	}
	return record
}

// ToRecords maps a batch of messages, dropping ineligible ones.
func ToRecords(msgs []collector_client.Message, parentChannelID, communityID string) []markov_client.TrainingRecord {
	records := make([]markov_client.TrainingRecord, 0, len(msgs))
	for _, msg := range msgs {
		if !Eligible(msg) {
			continue
		}
		records = append(records, ToRecord(msg, parentChannelID, communityID))
	}
	return records
}
