package trainer

// ProgressState is the transient per-run progress snapshot. It is owned by
// a single training run, mutated only by the orchestrator and handed to
// the progress sink by value.
type ProgressState struct {
	MessagesCount     int      `json:"messages_count"`
	CompletedChannels []string `json:"completed_channels"`
	CurrentChannel    string   `json:"current_channel"`
	PercentComplete   float64  `json:"percent_complete"`
	ETAText           string   `json:"eta_text"`

	lastUpdateCount int
}

// ProgressSink receives throttled progress updates during a training run,
// at most once per UpdateRate processed messages.
type ProgressSink interface {
	Update(state ProgressState)
}

// NopSink discards updates.
type NopSink struct{}

func (NopSink) Update(ProgressState) {}

func (s *ProgressState) snapshot() ProgressState {
	out := *s
	out.CompletedChannels = append([]string(nil), s.CompletedChannels...)
	return out
}
