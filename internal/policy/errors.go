package policy

import "errors"

// AsDenied unwraps err into a *DeniedError.
func AsDenied(err error) (*DeniedError, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
