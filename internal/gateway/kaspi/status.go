package kaspi

import "strings"

// Status is the local classification of a gateway payment status.
type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	}
	return "unknown"
}

var statusKeywords = map[string]Status{
	"PAID":      StatusSuccess,
	"COMPLETED": StatusSuccess,
	"SUCCESS":   StatusSuccess,
	"SUCCEEDED": StatusSuccess,
	"FAILED":    StatusFailure,
	"CANCELLED": StatusFailure,
	"REJECTED":  StatusFailure,
	"EXPIRED":   StatusFailure,
}

// ParseStatus matches raw case-insensitively; anything unlisted is StatusUnknown.
func ParseStatus(raw string) Status {
	if s, ok := statusKeywords[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusUnknown
}
