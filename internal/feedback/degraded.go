package feedback

// ErrorClass groups provider failures by what the user can do about them.
type ErrorClass string

const (
	ErrorRateLimited ErrorClass = "rate_limited"
	ErrorTimeout     ErrorClass = "timeout"
	ErrorConnection  ErrorClass = "connection"
	ErrorOther       ErrorClass = "other"
)

const maxErrorDetail = 100

// ConfigError is returned when no model credential is configured.
func ConfigError() Record {
	return Placeholder(
		nil,
		[]string{"API key not configured", "Missing LLM_API_KEY in environment"},
		[]string{"Please set LLM_API_KEY in your .env file"},
	)
}

// NoResponse is returned when the model replies with nothing.
func NoResponse() Record {
	return Placeholder(
		nil,
		[]string{"No response from model", "Model did not generate output"},
		[]string{"Please try again"},
	)
}

// ForError builds the degraded record for a classified provider failure.
// Strengths stay empty; the failure goes under weaknesses and the remedy
// under improvement suggestions.
func ForError(class ErrorClass, err error) Record {
	switch class {
	case ErrorRateLimited:
		return Placeholder(
			nil,
			[]string{"Rate limit exceeded", "Too many requests to the analysis service"},
			[]string{"Please wait a minute and try again"},
		)
	case ErrorTimeout:
		return Placeholder(
			nil,
			[]string{"API Timeout", "The analysis service took too long to respond"},
			[]string{"Please try again in a few moments"},
		)
	case ErrorConnection:
		return Placeholder(
			nil,
			[]string{"API Connection Error", "Could not reach the analysis service"},
			[]string{"Check network connectivity and try again"},
		)
	default:
		detail := "unknown error"
		if err != nil {
			detail = Truncate(err.Error(), maxErrorDetail)
		}
		return Placeholder(
			nil,
			[]string{"Error: " + detail, "An unexpected error occurred. Please try again."},
			[]string{"Please try again later"},
		)
	}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
