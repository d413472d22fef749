package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/gin-gonic/gin"
)

// statusForError maps service sentinels to HTTP statuses. Unrecognized
// errors are reported as 500 with a generic message so internals never leak.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorRuleOutOfRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorWrongOwner):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorSessionNotFound),
		errors.Is(err, common.ErrorRuleUnknown):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrorChallengeUsed),
		errors.Is(err, common.ErrorChallengeExpired),
		errors.Is(err, common.ErrorAttemptDecided),
		errors.Is(err, common.ErrorSessionTerminal),
		errors.Is(err, common.ErrorPhraseDuplicate),
		errors.Is(err, common.ErrorPhraseOutOfOrder),
		errors.Is(err, common.ErrorNoEligiblePhrases):
		return http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrorAccountLocked):
		return http.StatusLocked, err.Error()
	case errors.Is(err, common.ErrorRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, common.ErrorScorerUnavailable):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusForError(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
