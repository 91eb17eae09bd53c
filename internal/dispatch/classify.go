package dispatch

import (
	"strings"

	"github.com/promptlab/promptlab/internal/domain"
)

var quotaKeywords = []string{"quota", "rate limit", "429", "insufficient_quota", "exceeded"}

var authKeywords = []string{"authentication", "api key", "unauthorized", "401"}

// Classify maps a provider failure onto a recovery kind by case-insensitive
// keyword matching over the full message. Quota wins when both families
// match. Total: nil and unknown errors classify as other.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindOther
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range quotaKeywords {
		if strings.Contains(msg, kw) {
			return domain.ErrorKindQuota
		}
	}
	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return domain.ErrorKindAuth
		}
	}
	return domain.ErrorKindOther
}
