package retries

import (
	"errors"

	"github.com/aws/smithy-go"
)

var retriableDbErrorCodes = map[string]struct{}{
	"ProvisionedThroughputExceededException": {},
	"ThrottlingException":                    {},
	"RequestLimitExceeded":                   {},
	"InternalServerError":                    {},
	"ServiceUnavailable":                     {},
}

// IsRetriableDbError reports whether a DynamoDB call failed transiently.
// Conditional-check failures are deliberate rejections and never retried
// at this level.
func IsRetriableDbError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := retriableDbErrorCodes[apiErr.ErrorCode()]
	return ok
}
