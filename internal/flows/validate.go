package flows

import "github.com/MrEthical07/goRotate/jwt"

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureUnauthorized
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// ValidateDeps captures access-token validation dependencies. Access tokens are
// not tracked in storage, so validation is signature and expiry only.
type ValidateDeps struct {
	VerifyAccess func(string) (*jwt.Claims, error)
}

func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.VerifyAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureUnauthorized, Err: err}
	}
	return ValidateResult{Failure: ValidateFailureNone, Claims: claims}
}
