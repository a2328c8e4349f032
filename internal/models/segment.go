package models

// SegmentKind names a segment collection
type SegmentKind string

const (
	SegmentKindAudio     SegmentKind = "audio"
	SegmentKindText      SegmentKind = "text"
	SegmentKindVoiceover SegmentKind = "voiceover"
)

// Segment is the time range shared by every overlay or clip on the timeline.
// Times are seconds on the current (post-trim) timeline.
type Segment struct {
	ID    string  `json:"id" yaml:"id"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Valid reports whether the range is non-negative and non-empty
func (s Segment) Valid() bool {
	return s.ID != "" && s.Start >= 0 && s.End > s.Start
}

// AudioSegment is the background music track
type AudioSegment struct {
	Segment      `yaml:",inline"`
	URI          string  `json:"uri" yaml:"uri"`
	Name         string  `json:"name,omitempty" yaml:"name"`
	Color        string  `json:"color,omitempty" yaml:"color"`
	AudioOffset  float64 `json:"audioOffset" yaml:"audio_offset"`
	ClipDuration float64 `json:"clipDuration" yaml:"clip_duration"`
	IsLooped     bool    `json:"isLooped" yaml:"is_looped"`
}

func (a AudioSegment) Span() Segment { return a.Segment }

func (a AudioSegment) WithSpan(s Segment) AudioSegment {
	a.Segment = s
	return a
}

// TextSegment is a text overlay drawn over the video
type TextSegment struct {
	Segment         `yaml:",inline"`
	Text            string   `json:"text" yaml:"text"`
	FontSize        float64  `json:"fontSize" yaml:"font_size"`
	Color           string   `json:"color" yaml:"color"`
	BackgroundColor string   `json:"backgroundColor,omitempty" yaml:"background_color"`
	X               *float64 `json:"x,omitempty" yaml:"x"`
	Y               *float64 `json:"y,omitempty" yaml:"y"`
	FontFamily      string   `json:"fontFamily,omitempty" yaml:"font_family"`
	Alignment       string   `json:"alignment,omitempty" yaml:"alignment"`
}

func (t TextSegment) Span() Segment { return t.Segment }

func (t TextSegment) WithSpan(s Segment) TextSegment {
	t.Segment = s
	return t
}

// VoiceoverSegment is a recorded narration clip
type VoiceoverSegment struct {
	Segment `yaml:",inline"`
	URI     string `json:"uri" yaml:"uri"`
	Name    string `json:"name,omitempty" yaml:"name"`
	Color   string `json:"color,omitempty" yaml:"color"`
}

func (v VoiceoverSegment) Span() Segment { return v.Segment }

func (v VoiceoverSegment) WithSpan(s Segment) VoiceoverSegment {
	v.Segment = s
	return v
}

// AudioPatch carries the fields to merge into an AudioSegment; nil fields are left untouched.
type AudioPatch struct {
	Start        *float64 `json:"start,omitempty"`
	End          *float64 `json:"end,omitempty"`
	URI          *string  `json:"uri,omitempty"`
	Name         *string  `json:"name,omitempty"`
	Color        *string  `json:"color,omitempty"`
	AudioOffset  *float64 `json:"audioOffset,omitempty"`
	ClipDuration *float64 `json:"clipDuration,omitempty"`
	IsLooped     *bool    `json:"isLooped,omitempty"`
}

func (p AudioPatch) Apply(a AudioSegment) AudioSegment {
	setFloat(&a.Start, p.Start)
	setFloat(&a.End, p.End)
	setString(&a.URI, p.URI)
	setString(&a.Name, p.Name)
	setString(&a.Color, p.Color)
	setFloat(&a.AudioOffset, p.AudioOffset)
	setFloat(&a.ClipDuration, p.ClipDuration)
	if p.IsLooped != nil {
		a.IsLooped = *p.IsLooped
	}
	return a
}

// TextPatch carries the fields to merge into a TextSegment
type TextPatch struct {
	Start           *float64 `json:"start,omitempty"`
	End             *float64 `json:"end,omitempty"`
	Text            *string  `json:"text,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	Color           *string  `json:"color,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	X               *float64 `json:"x,omitempty"`
	Y               *float64 `json:"y,omitempty"`
	FontFamily      *string  `json:"fontFamily,omitempty"`
	Alignment       *string  `json:"alignment,omitempty"`
}

func (p TextPatch) Apply(t TextSegment) TextSegment {
	setFloat(&t.Start, p.Start)
	setFloat(&t.End, p.End)
	setString(&t.Text, p.Text)
	setFloat(&t.FontSize, p.FontSize)
	setString(&t.Color, p.Color)
	setString(&t.BackgroundColor, p.BackgroundColor)
	if p.X != nil {
		x := *p.X
		t.X = &x
	}
	if p.Y != nil {
		y := *p.Y
		t.Y = &y
	}
	setString(&t.FontFamily, p.FontFamily)
	setString(&t.Alignment, p.Alignment)
	return t
}

// VoiceoverPatch carries the fields to merge into a VoiceoverSegment
type VoiceoverPatch struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	URI   *string  `json:"uri,omitempty"`
	Name  *string  `json:"name,omitempty"`
	Color *string  `json:"color,omitempty"`
}

func (p VoiceoverPatch) Apply(v VoiceoverSegment) VoiceoverSegment {
	setFloat(&v.Start, p.Start)
	setFloat(&v.End, p.End)
	setString(&v.URI, p.URI)
	setString(&v.Name, p.Name)
	setString(&v.Color, p.Color)
	return v
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
