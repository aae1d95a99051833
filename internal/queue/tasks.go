package queue

const (
	TypeTranscribeAudio = "transcribe:audio"
)

// TranscribeAudioPayload points a worker at an upload staged by the API.
// The job id is the workspace id.
type TranscribeAudioPayload struct {
	WorkspaceID string `json:"workspace_id"`
	StagedName  string `json:"staged_name"`
	Filename    string `json:"filename"`
}
