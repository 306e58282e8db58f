package neviweb

import (
	"fmt"
	"strings"
)

// Vendor error codes carried in the {"error":{"code":...}} envelope.
const (
	CodeSessionExpired       = "USRSESSEXP"
	CodeSessionLimit         = "ACCSESSEXC"
	CodeAttributeUnsupported = "DVCATTRNSPTD"
	CodeActionUnsupported    = "DVCACTNSPTD"
	CodeCommTimeout          = "DVCCOMMTO"
	CodeServiceError         = "SVCERR"
	CodeDeviceBusy           = "DVCBUSY"
	CodeDeviceUnavailable    = "DVCUNVLB"
	CodeDeviceError          = "DVCERR"
	CodeUnauthorized         = "SVCUNAUTH"
)

// ReadTimeout is the errorCode value Neviweb reports when a device did not answer in time.
const ReadTimeout = "ReadTimeout"

// APIError is the error envelope returned by Neviweb.
type APIError struct {
	Code string
}

func (e *APIError) Error() string {
	return "neviweb error " + e.Code
}

// HTTPStatusError is returned for non-2xx responses without an error envelope.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("neviweb http %d: %s", e.Status, strings.TrimSpace(e.Body))
}
