package craig

// Guild identifies the server a recording was captured in.
type Guild struct {
	Name string `json:"name"`
}

// Channel identifies the voice channel a recording was captured in.
type Channel struct {
	Name string `json:"name"`
}

// RecordingInfo is the recording document nested inside the metadata response.
type RecordingInfo struct {
	ID        string   `json:"id"`
	StartTime string   `json:"startTime"`
	Guild     *Guild   `json:"guild"`
	Channel   *Channel `json:"channel"`
}

// User is one speaker with an isolated track in the recording.
type User struct {
	Username string `json:"username"`
	Track    int    `json:"track"`
}

// Metadata is the full recording metadata document. Duration may be zero in
// the primary response; the duration endpoint back-fills it.
type Metadata struct {
	Recording RecordingInfo `json:"recording"`
	Users     []User        `json:"users"`
	Duration  int           `json:"duration"`
}

// GuildName returns the guild name or the empty string.
func (m *Metadata) GuildName() string {
	if m == nil || m.Recording.Guild == nil {
		return ""
	}
	return m.Recording.Guild.Name
}

// ChannelName returns the channel name or the empty string.
func (m *Metadata) ChannelName() string {
	if m == nil || m.Recording.Channel == nil {
		return ""
	}
	return m.Recording.Channel.Name
}

// Job is the server-side conversion task for a recording.
type Job struct {
	Status         string `json:"status"`
	OutputFileName string `json:"outputFileName"`
	OutputSize     int64  `json:"outputSize"`
}

// JobOptions selects the container and per-track format for a job.
type JobOptions struct {
	Container string `json:"container"`
	Format    string `json:"format"`
}

// JobRequest is the body posted to create a conversion job.
type JobRequest struct {
	Type    string     `json:"type"`
	Options JobOptions `json:"options"`
}

// NewJobRequest builds the job body for the requested output shape.
// Mixed output uses the "mix" container; per-track output uses "zip".
func NewJobRequest(mixed bool, format string) JobRequest {
	container := "zip"
	if mixed {
		container = "mix"
	}
	return JobRequest{
		Type: "recording",
		Options: JobOptions{
			Container: container,
			Format:    format,
		},
	}
}

type jobEnvelope struct {
	Job *Job `json:"job"`
}

type durationResponse struct {
	Duration int `json:"duration"`
}
