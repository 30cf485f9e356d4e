// Package models defines the request and response types of the HTTP API.
package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BoxDTO is a face bounding box in unit coordinates, origin top-left
type BoxDTO struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// ObservationDTO describes the detected face of one frame
type ObservationDTO struct {
	Box      BoxDTO  `json:"box"`
	YawDeg   float64 `json:"yaw_deg"`
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
}

// AnalyzeResponse is the verdict for a single uploaded frame
type AnalyzeResponse struct {
	Compliant   bool            `json:"compliant"`
	Ideal       bool            `json:"ideal"`
	Code        string          `json:"code,omitempty"`
	Message     string          `json:"message,omitempty"`
	Observation *ObservationDTO `json:"observation,omitempty"`
}

// ProcessRequest carries the form fields of a photo processing request.
// The frame image arrives as the multipart file "frame".
type ProcessRequest struct {
	Background string  `form:"background" validate:"omitempty,hexcolor"`
	SpecCode   string  `form:"spec_code"`
	Brightness float64 `form:"brightness" validate:"gte=-0.5,lte=0.5"`
	Format     string  `form:"format" validate:"omitempty,oneof=png jpeg jpg"`
	Persist    bool    `form:"persist"`
}

// Validate checks the request's field constraints
func (r *ProcessRequest) Validate() error {
	return validate.Struct(r)
}

// BackgroundRequest selects a new background for a quick swap
type BackgroundRequest struct {
	Background string  `json:"background" validate:"required,hexcolor"`
	Brightness float64 `json:"brightness" validate:"gte=-0.5,lte=0.5"`
}

// Validate checks the request's field constraints
func (r *BackgroundRequest) Validate() error {
	return validate.Struct(r)
}

// VoiceRequest toggles voice guidance
type VoiceRequest struct {
	Muted bool `json:"muted"`
}

// ProcessResponse reports where a finished photo went
type ProcessResponse struct {
	Photo     string    `json:"photo,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// StateMessage is one guidance update on the websocket stream
type StateMessage struct {
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SpecDTO describes one supported print format
type SpecDTO struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	DPI      int     `json:"dpi"`
	WidthPX  int     `json:"width_px"`
	HeightPX int     `json:"height_px"`
}
