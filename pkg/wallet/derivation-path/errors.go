package path

import "fmt"

var (
	ErrMissingDerivationPath          = fmt.Errorf("missing derivation path")
	ErrMalformedDerivationPath        = fmt.Errorf("path must not start or end with a '/'")
	ErrRequiredAbsoluteDerivationPath = fmt.Errorf("path must be an absolute path, ie starting with 'm/'")
	ErrInvalidAccountPathLen          = fmt.Errorf("account path must contain at least purpose, coin type and account elements")
	ErrInvalidAccountPath             = fmt.Errorf("purpose, coin type and account elements must be hardened")
)
