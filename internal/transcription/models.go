package transcription

// Segment is a single recognized span of speech
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a complete transcription of an audio file
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// WhisperModel describes a selectable speech-to-text model
type WhisperModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SizeMB      int    `json:"size_mb"`
}

// AvailableModels returns the supported whisper model catalog
func AvailableModels() []WhisperModel {
	return []WhisperModel{
		{ID: "tiny", Name: "Tiny", Description: "Fastest, lowest accuracy", SizeMB: 75},
		{ID: "base", Name: "Base", Description: "Fast, good accuracy for most uses", SizeMB: 145},
		{ID: "small", Name: "Small", Description: "Balanced speed and accuracy", SizeMB: 488},
		{ID: "medium", Name: "Medium", Description: "High accuracy, slower", SizeMB: 1530},
		{ID: "large-v3", Name: "Large v3", Description: "Best accuracy, requires a strong machine", SizeMB: 3100},
	}
}
