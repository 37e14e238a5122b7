package entities

import (
	"strconv"
	"strings"
)

// Prescription represents the structured refractive values for both eyes.
// Values arrive as strings from upstream intake (OCR, manual entry) and are
// never mutated by the engine.
type Prescription struct {
	ODSphere   string `json:"od_sphere" db:"od_sphere"`
	ODCylinder string `json:"od_cylinder" db:"od_cylinder"`
	ODAxis     string `json:"od_axis" db:"od_axis"`
	ODAdd      string `json:"od_add" db:"od_add"`
	OSSphere   string `json:"os_sphere" db:"os_sphere"`
	OSCylinder string `json:"os_cylinder" db:"os_cylinder"`
	OSAxis     string `json:"os_axis" db:"os_axis"`
	OSAdd      string `json:"os_add" db:"os_add"`
	PD         string `json:"pd" db:"pd"`
}

// FrameData carries optional frame measurements supplied with an order.
type FrameData struct {
	WrapAngle *float64 `json:"wrap_angle,omitempty"`
}

// ClinicalNote is a free-text dispensing note with optional demographics.
type ClinicalNote struct {
	Text       string `json:"text"`
	PatientAge *int   `json:"patient_age,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

// ParseDiopter converts a prescription value like "+2.50" or "-1.25 D" to a
// float. Malformed or empty values parse as 0 so that scoring stays total.
func ParseDiopter(v string) float64 {
	s := strings.TrimSpace(v)
	s = strings.TrimSuffix(strings.ToUpper(s), "D")
	s = strings.TrimSpace(strings.TrimPrefix(s, "+"))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// IsEmpty reports whether no refractive value is present at all.
func (p *Prescription) IsEmpty() bool {
	return strings.TrimSpace(p.ODSphere) == "" &&
		strings.TrimSpace(p.ODCylinder) == "" &&
		strings.TrimSpace(p.OSSphere) == "" &&
		strings.TrimSpace(p.OSCylinder) == "" &&
		strings.TrimSpace(p.ODAdd) == "" &&
		strings.TrimSpace(p.OSAdd) == ""
}

// MaxAdd returns the stronger of the two add powers.
func (p *Prescription) MaxAdd() float64 {
	od := ParseDiopter(p.ODAdd)
	os := ParseDiopter(p.OSAdd)
	if os > od {
		return os
	}
	return od
}

// MaxSphere returns the more plus sphere of the two eyes.
func (p *Prescription) MaxSphere() float64 {
	od := ParseDiopter(p.ODSphere)
	os := ParseDiopter(p.OSSphere)
	if os > od {
		return os
	}
	return od
}
