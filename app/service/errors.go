package service

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrSettingsInvalid = errors.New("invalid gateway settings")
)

const (
	stepInitiate     = "initiate"
	stepAuthenticate = "authenticate"
	stepVerify       = "verify"
	stepSettle       = "settle"
)

// reasonUnclearInitiation labels first-charge responses that are neither a
// DDC descriptor nor a challenge. Deliberately never reported as success.
const reasonUnclearInitiation = "unclear_initiation_response"

// ddcFallbackReasonPrefix marks declines that followed a locally synthesized
// session reference, so rejected fallback sessions are distinguishable from
// genuine card declines.
const ddcFallbackReasonPrefix = "ddc_fallback: "
