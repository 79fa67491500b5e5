package backoff

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// Kind partitions failures by retry policy.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimitHinted
	KindRateLimit
	KindTransient
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindRateLimitHinted:
		return "rate_limit_hinted"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Classification is the retry-relevant reading of one failure.
type Classification struct {
	Kind Kind
	Hint time.Duration // Only set for KindRateLimitHinted
}

// retryHintPattern matches server messages like "retry in 3.5s" or
// "Please retry in 7 seconds".
var retryHintPattern = regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)\s*s`)

// Classify inspects an error and decides the retry policy that applies.
// HTTP status codes are read from wrapped API errors when available; message
// substrings serve as the fallback because several SDKs flatten status into
// text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	msg := err.Error()
	code := httpCode(err)

	rateLimited := code == http.StatusTooManyRequests ||
		containsAny(msg, "rate limit", "ratelimit", "quota", "resource_exhausted", "429")

	if rateLimited {
		if hint, ok := parseRetryHint(msg); ok {
			return Classification{Kind: KindRateLimitHinted, Hint: hint}
		}
		return Classification{Kind: KindRateLimit}
	}

	transient := code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout ||
		containsAny(msg, "overloaded", "unavailable", "internal error", "503", "500", "deadline exceeded")

	if transient {
		return Classification{Kind: KindTransient}
	}

	return Classification{Kind: KindUnknown}
}

// httpCode extracts an HTTP status from wrapped API error types, or 0.
func httpCode(err error) int {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code
		}
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}

	return 0
}

// parseRetryHint extracts a "retry in N s" hint as a duration.
func parseRetryHint(msg string) (time.Duration, bool) {
	m := retryHintPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func containsAny(msg string, subs ...string) bool {
	lower := strings.ToLower(msg)
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
