package thermostat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

var jsonNull = []byte("null")

// flexFloat accepts a JSON number or a numeric string. null leaves it unset.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*f = flexFloat{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = flexFloat{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat{Value: v, Valid: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// flexString accepts a string, number or bool and keeps its text form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// statusValue is the {status, value} pair used by many Neviweb attributes.
type statusValue struct {
	Status flexString `json:"status"`
	Value  flexFloat  `json:"value"`
}

// load decodes a wattage that is either a plain number or a {status, value}
// object. The value is zero when the status is not "on".
type load struct {
	Status string
	Value  float64
}

func (l *load) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var sv statusValue
		if err := json.Unmarshal(b, &sv); err != nil {
			return err
		}
		l.Status = string(sv.Status)
		l.Value = 0
		if l.Status == "on" {
			l.Value = sv.Value.Value
		}
		return nil
	}
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	l.Status = ""
	l.Value = f.Value
	return nil
}
