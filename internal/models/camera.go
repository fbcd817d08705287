package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownCameraType = errors.New("unknown camera type")

type CameraType string

const (
	CameraTypeSpeed    CameraType = "SPEED"
	CameraTypeRedLight CameraType = "RED_LIGHT"
	CameraTypePolice   CameraType = "POLICE"
)

// CameraTypes lists every category in display order.
var CameraTypes = []CameraType{CameraTypeSpeed, CameraTypeRedLight, CameraTypePolice}

func (t CameraType) String() string {
	return string(t)
}

func (t CameraType) Valid() bool {
	switch t {
	case CameraTypeSpeed, CameraTypeRedLight, CameraTypePolice:
		return true
	}
	return false
}

// Label is the human readable form shown in pickers, e.g. RED_LIGHT -> "Red light".
func (t CameraType) Label() string {
	s := strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Icon is the marker drawable the map client renders for the category.
func (t CameraType) Icon() string {
	switch t {
	case CameraTypeRedLight:
		return "ic_red_light_camera"
	case CameraTypePolice:
		return "ic_traffic_camera"
	default:
		return "ic_speed_camera"
	}
}

// ParseLabel is the inverse of Label.
func ParseLabel(label string) (CameraType, error) {
	for _, t := range CameraTypes {
		if strings.EqualFold(strings.TrimSpace(label), t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCameraType, label)
}

// ParseCameraType accepts either the enum name or its label.
func ParseCameraType(s string) (CameraType, error) {
	t := CameraType(strings.ToUpper(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return ParseLabel(s)
}

// CameraReport is one reported enforcement camera. ID stays empty until the
// store assigns one on create.
type CameraReport struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	Type        CameraType `json:"type" bson:"type" validate:"required,oneof=SPEED RED_LIGHT POLICE"`
	Latitude    float64    `json:"latitude" bson:"latitude" validate:"latitude"`
	Longitude   float64    `json:"longitude" bson:"longitude" validate:"longitude"`
	ReportedBy  string     `json:"reported_by" bson:"reported_by" validate:"max=100"`
	Timestamp   time.Time  `json:"timestamp" bson:"timestamp"`
	ThumbsUp    int        `json:"thumbs_up" bson:"thumbs_up" validate:"min=0"`
	ThumbsDown  int        `json:"thumbs_down" bson:"thumbs_down" validate:"min=0"`
	Flags       int        `json:"flags" bson:"flags" validate:"min=0"`
	Description string     `json:"description" bson:"description" validate:"max=500"`
}

const AnonymousReporter = "Anonymous"

var validate = validator.New()

func (r *CameraReport) Validate() error {
	return validate.Struct(r)
}

// NewCameraReport builds an unsaved report with the defaults the map client uses.
func NewCameraReport(t CameraType, at Coordinates, reportedBy, description string) CameraReport {
	if t == "" {
		t = CameraTypeSpeed
	}
	if strings.TrimSpace(reportedBy) == "" {
		reportedBy = AnonymousReporter
	}
	return CameraReport{
		Type:        t,
		Latitude:    at.Latitude,
		Longitude:   at.Longitude,
		ReportedBy:  reportedBy,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
		Description: description,
	}
}

func (r *CameraReport) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
}

type VoteDirection int

const (
	VoteUp VoteDirection = iota + 1
	VoteDown
)

func (d VoteDirection) String() string {
	switch d {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return "unknown"
	}
}

func ParseVoteDirection(s string) (VoteDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "thumbs_up", "true":
		return VoteUp, nil
	case "down", "thumbs_down", "false":
		return VoteDown, nil
	default:
		return 0, fmt.Errorf("invalid vote direction: %q", s)
	}
}
