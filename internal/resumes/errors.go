package resumes

import "errors"

var (
	ErrNotFound         = errors.New("resume not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrFileTooLarge     = errors.New("file exceeds the 5 MiB limit")
	ErrNotPDF           = errors.New("only .pdf files are accepted")
	ErrAnalysisInFlight = errors.New("analysis already pending or running")
)
