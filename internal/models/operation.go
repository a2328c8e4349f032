package models

import (
	"encoding/json"
	"fmt"
)

// OperationType is the discriminator sent to the renderer in the "type" field
type OperationType string

const (
	OperationTypeVideoURI    OperationType = "videoUri"
	OperationTypeCrop        OperationType = "crop"
	OperationTypeTrim        OperationType = "trim"
	OperationTypeAudio       OperationType = "audio"
	OperationTypeTextOverlay OperationType = "addTextOverlay"
	OperationTypeVoiceOver   OperationType = "addVoiceOver"
)

// Singleton reports whether the operation list keeps at most one record of this type
func (t OperationType) Singleton() bool {
	switch t {
	case OperationTypeVideoURI, OperationTypeCrop, OperationTypeTrim, OperationTypeAudio:
		return true
	}
	return false
}

// CropOriginal is the aspect ratio selection that leaves the frame untouched
const CropOriginal = "original"

// Operation is one edit instruction for the renderer. The set of
// implementations is closed: VideoURIOperation, CropOperation, TrimOperation,
// AudioOperation, TextOverlayOperation and VoiceOverOperation.
type Operation interface {
	Type() OperationType
	clone() Operation
}

// CloneOperation returns a copy that shares no memory with op
func CloneOperation(op Operation) Operation {
	if op == nil {
		return nil
	}
	return op.clone()
}

type VideoURIOperation struct {
	VideoURI string `json:"videoUri"`
}

func (VideoURIOperation) Type() OperationType { return OperationTypeVideoURI }
func (o VideoURIOperation) clone() Operation  { return o }

func (o VideoURIOperation) MarshalJSON() ([]byte, error) {
	type plain VideoURIOperation
	return marshalTagged(o.Type(), plain(o))
}

// CropOperation selects an output aspect ratio such as "1:1", "9:16" or "16:9"
type CropOperation struct {
	SelectionParams string `json:"selection_params"`
}

func (CropOperation) Type() OperationType { return OperationTypeCrop }
func (o CropOperation) clone() Operation  { return o }

func (o CropOperation) MarshalJSON() ([]byte, error) {
	type plain CropOperation
	return marshalTagged(o.Type(), plain(o))
}

// TrimOperation keeps [StartTime, EndTime] of the source video, in source seconds
type TrimOperation struct {
	StartTime *float64 `json:"startTime,omitempty"`
	EndTime   *float64 `json:"endTime,omitempty"`
}

func (TrimOperation) Type() OperationType { return OperationTypeTrim }

func (o TrimOperation) clone() Operation {
	return TrimOperation{StartTime: cloneFloat(o.StartTime), EndTime: cloneFloat(o.EndTime)}
}

func (o TrimOperation) MarshalJSON() ([]byte, error) {
	type plain TrimOperation
	return marshalTagged(o.Type(), plain(o))
}

type AudioOperation struct {
	MusicURI     string   `json:"musicUri"`
	AudioOffset  float64  `json:"audioOffset"`
	ClipDuration float64  `json:"clipDuration"`
	IsLooped     bool     `json:"isLooped"`
	StartTime    *float64 `json:"startTime,omitempty"`
	EndTime      *float64 `json:"endTime,omitempty"`
}

func (AudioOperation) Type() OperationType { return OperationTypeAudio }

func (o AudioOperation) clone() Operation {
	o.StartTime = cloneFloat(o.StartTime)
	o.EndTime = cloneFloat(o.EndTime)
	return o
}

func (o AudioOperation) MarshalJSON() ([]byte, error) {
	type plain AudioOperation
	return marshalTagged(o.Type(), plain(o))
}

// TextPosition is the overlay anchor in renderer pixels
type TextPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextOverlayOperation draws Text between StartTime and EndTime. FontSize is
// already converted to renderer pixels.
type TextOverlayOperation struct {
	Text            string        `json:"text"`
	FontSize        float64       `json:"fontSize"`
	TextColor       string        `json:"textColor,omitempty"`
	BackgroundColor string        `json:"backgroundColor,omitempty"`
	TextPosition    *TextPosition `json:"textPosition,omitempty"`
	StartTime       *float64      `json:"startTime,omitempty"`
	EndTime         *float64      `json:"endTime,omitempty"`
	FontFamily      string        `json:"fontFamily,omitempty"`
	Alignment       string        `json:"alignment,omitempty"`
}

func (TextOverlayOperation) Type() OperationType { return OperationTypeTextOverlay }

func (o TextOverlayOperation) clone() Operation {
	if o.TextPosition != nil {
		pos := *o.TextPosition
		o.TextPosition = &pos
	}
	o.StartTime = cloneFloat(o.StartTime)
	o.EndTime = cloneFloat(o.EndTime)
	return o
}

func (o TextOverlayOperation) MarshalJSON() ([]byte, error) {
	type plain TextOverlayOperation
	return marshalTagged(o.Type(), plain(o))
}

type VoiceOverOperation struct {
	VoiceOverURI string   `json:"voiceOverUri"`
	StartTime    *float64 `json:"startTime,omitempty"`
	EndTime      *float64 `json:"endTime,omitempty"`
}

func (VoiceOverOperation) Type() OperationType { return OperationTypeVoiceOver }

func (o VoiceOverOperation) clone() Operation {
	o.StartTime = cloneFloat(o.StartTime)
	o.EndTime = cloneFloat(o.EndTime)
	return o
}

func (o VoiceOverOperation) MarshalJSON() ([]byte, error) {
	type plain VoiceOverOperation
	return marshalTagged(o.Type(), plain(o))
}

// ExportConfig is the snapshot handed to the renderer
type ExportConfig struct {
	VideoElements []Operation `json:"videoElements"`
}

func (c *ExportConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		VideoElements []json.RawMessage `json:"videoElements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	elements := make([]Operation, 0, len(raw.VideoElements))
	for i, item := range raw.VideoElements {
		op, err := DecodeOperation(item)
		if err != nil {
			return fmt.Errorf("videoElements[%d]: %w", i, err)
		}
		elements = append(elements, op)
	}
	c.VideoElements = elements
	return nil
}

// DecodeOperation decodes a single tagged record
func DecodeOperation(data []byte) (Operation, error) {
	var head struct {
		Type OperationType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse operation: %w", err)
	}

	var (
		op  Operation
		err error
	)
	switch head.Type {
	case OperationTypeVideoURI:
		var o VideoURIOperation
		err = json.Unmarshal(data, &o)
		op = o
	case OperationTypeCrop:
		var o CropOperation
		err = json.Unmarshal(data, &o)
		op = o
	case OperationTypeTrim:
		var o TrimOperation
		err = json.Unmarshal(data, &o)
		op = o
	case OperationTypeAudio:
		var o AudioOperation
		err = json.Unmarshal(data, &o)
		op = o
	case OperationTypeTextOverlay:
		var o TextOverlayOperation
		err = json.Unmarshal(data, &o)
		op = o
	case OperationTypeVoiceOver:
		var o VoiceOverOperation
		err = json.Unmarshal(data, &o)
		op = o
	default:
		return nil, fmt.Errorf("unknown operation type: %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s operation: %w", head.Type, err)
	}
	return op, nil
}

func marshalTagged(t OperationType, body any) ([]byte, error) {
	fields, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(fields)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(fields) > 2 {
		out = append(out, ',')
		out = append(out, fields[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Float returns a pointer to v, for optional operation times
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
