package domain

// AppError is the user-visible error payload. Stage and Node identify where a
// failure happened.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	Node    string `json:"node,omitempty"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line,omitempty"` // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}

// Pipeline stages.
const (
	StageFetch   = "fetch_sub"
	StageParse   = "parse_sub"
	StageProbe   = "probe"
	StageSelect  = "select"
	StageSession = "session"
	StageDetect  = "detect_game"
)
