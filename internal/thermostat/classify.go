package thermostat

import "neviweb-go-home/internal/neviweb"

// ErrorKind classifies a Neviweb error code.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorSessionExpired
	ErrorSessionLimit
	ErrorAttributeUnsupported
	ErrorActionUnsupported
	ErrorCommTimeout
	ErrorService
	ErrorBusy
	ErrorUnavailable
	ErrorDevice
	ErrorUnauthorized
)

var errorKindNames = [...]string{
	ErrorUnknown:              "unknown",
	ErrorSessionExpired:       "session_expired",
	ErrorSessionLimit:         "session_limit",
	ErrorAttributeUnsupported: "attribute_unsupported",
	ErrorActionUnsupported:    "action_unsupported",
	ErrorCommTimeout:          "comm_timeout",
	ErrorService:              "service_error",
	ErrorBusy:                 "busy",
	ErrorUnavailable:          "unavailable",
	ErrorDevice:               "device_error",
	ErrorUnauthorized:         "unauthorized",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "unknown"
}

// Classify maps a vendor error code to its kind. Unrecognised codes are
// ErrorUnknown.
func Classify(code string) ErrorKind {
	switch code {
	case neviweb.CodeSessionExpired:
		return ErrorSessionExpired
	case neviweb.CodeSessionLimit:
		return ErrorSessionLimit
	case neviweb.CodeAttributeUnsupported:
		return ErrorAttributeUnsupported
	case neviweb.CodeActionUnsupported:
		return ErrorActionUnsupported
	case neviweb.CodeCommTimeout:
		return ErrorCommTimeout
	case neviweb.CodeServiceError:
		return ErrorService
	case neviweb.CodeDeviceBusy:
		return ErrorBusy
	case neviweb.CodeDeviceUnavailable:
		return ErrorUnavailable
	case neviweb.CodeDeviceError:
		return ErrorDevice
	case neviweb.CodeUnauthorized:
		return ErrorUnauthorized
	default:
		return ErrorUnknown
	}
}
