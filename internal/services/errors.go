package services

import "errors"

// Rejection classes of the authorization flow. Errors returned by
// AuthorizationService wrap exactly one of these.
var (
	ErrValidation        = errors.New("invalid request")
	ErrChainRead         = errors.New("chain read failed")
	ErrNotEntitled       = errors.New("address or token not in snapshot")
	ErrAllowanceExceeded = errors.New("amount exceeds remaining allowance")
	ErrSigning           = errors.New("signing failed")
)

// State of one authorization flow
type State string

const (
	StateReceived           State = "received"
	StateValidating         State = "validating"
	StateFetchingNonce      State = "fetching_nonce"
	StateFetchingBalance    State = "fetching_balance"
	StateComputingAllowance State = "computing_allowance"
	StateSigning            State = "signing"
	StateAuthorized         State = "authorized"
	StateRejected           State = "rejected"
)

// Operation names, used as the metrics label
const (
	OperationMaxBN        = "maxBN"
	OperationMaxBNReduced = "maxBNReduced"
	OperationMax          = "max"
	OperationAuthorize    = "authorize"
)

// IsRejection reports whether err is a refusal of the request itself rather than a failure
// to evaluate it
func IsRejection(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotEntitled) || errors.Is(err, ErrAllowanceExceeded)
}
