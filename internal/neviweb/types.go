package neviweb

import (
	"encoding/json"
	"fmt"
)

// Location is a Neviweb network (one GT130 gateway or a group of Wi-Fi devices).
type Location struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SoftVersion is the firmware version reported in a device signature.
type SoftVersion struct {
	Major  int `json:"major"`
	Middle int `json:"middle"`
	Minor  int `json:"minor"`
}

func (v SoftVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Middle, v.Minor)
}

// Signature identifies the hardware model of a device.
type Signature struct {
	Model       int         `json:"model"`
	ModelCfg    int         `json:"modelCfg"`
	SoftVersion SoftVersion `json:"softVersion"`
}

// DeviceInfo is one entry of the device discovery listing.
type DeviceInfo struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	SKU       string     `json:"sku"`
	Signature *Signature `json:"signature,omitempty"`
}

// StatEntry is one bucket of an energy history. Values are Wh.
type StatEntry struct {
	Period  float64 `json:"period"`
	Counter float64 `json:"counter"`
}

// Attributes is the raw attribute map returned by a device read.
type Attributes map[string]json.RawMessage

// ErrorCode returns the partial-failure errorCode field, if any.
func (a Attributes) ErrorCode() (string, bool) {
	raw, ok := a["errorCode"]
	if !ok {
		return "", false
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return string(raw), true
	}
	return code, true
}

type errorEnvelope struct {
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// apiError extracts the error envelope from a response body, if present.
func apiError(body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	return &APIError{Code: env.Error.Code}
}
