package studio

import (
	"fmt"
	"time"

	"github.com/ironsheep/photo-edit-mcp/internal/export"
	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
)

// Kind is an operation the external model can perform.
type Kind string

// Operation kinds. Each kind has its own request slot per image.
const (
	KindEdit              Kind = "edit"
	KindBackgroundRemoval Kind = "background_removal"
)

// Kinds lists every operation kind.
var Kinds = []Kind{KindEdit, KindBackgroundRemoval}

// Variant returns the displayable variant a kind produces.
func (k Kind) Variant() Variant {
	if k == KindBackgroundRemoval {
		return VariantBackgroundRemoved
	}
	return VariantEdited
}

// Variant names one displayable bitmap of an image-set entry.
type Variant string

// Variants. Their values double as export suffixes.
const (
	VariantOriginal          Variant = Variant(export.SuffixOriginal)
	VariantEdited            Variant = Variant(export.SuffixEdited)
	VariantBackgroundRemoved Variant = Variant(export.SuffixBackgroundRemoved)
)

// Variants lists every variant in display order.
var Variants = []Variant{VariantOriginal, VariantEdited, VariantBackgroundRemoved}

// ParseVariant validates a variant name. "" means the original.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantOriginal:
		return VariantOriginal, nil
	case VariantEdited, VariantBackgroundRemoved:
		return Variant(s), nil
	case "background_removed", "background-removed":
		return VariantBackgroundRemoved, nil
	}
	return "", fmt.Errorf("unknown variant: %s", s)
}

// Suffix returns the export suffix for the variant.
func (v Variant) Suffix() export.Suffix {
	return export.Suffix(v)
}

// Output is a bitmap produced by a successful model call.
type Output struct {
	Kind Kind `json:"kind"`

	// Index is the image the request was started on.
	Index  int                   `json:"index"`
	Bitmap imaging.EncodedBitmap `json:"bitmap"`
}

// Phase names a request state.
type Phase string

// Request phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// RequestState is the state of one (image, kind) request slot. It is one of
// Idle, Requesting, Succeeded or Failed.
type RequestState interface {
	Phase() Phase
}

// Idle is the state before any request, and the implicit state a new request
// starts from.
type Idle struct{}

// Requesting is the state while the model call is in flight.
type Requesting struct {
	Started time.Time
}

// Succeeded holds the output of a completed request.
type Succeeded struct {
	Output Output
}

// Failed holds the user-visible message of a failed request.
type Failed struct {
	Message string
}

func (Idle) Phase() Phase       { return PhaseIdle }
func (Requesting) Phase() Phase { return PhaseRequesting }
func (Succeeded) Phase() Phase  { return PhaseSucceeded }
func (Failed) Phase() Phase     { return PhaseFailed }

// slot addresses a request state.
type slot struct {
	index int
	kind  Kind
}

// flight is the single in-flight request of one kind. Keeping it per kind,
// rather than per slot, is what rules out two concurrent requests of the
// same kind.
type flight struct {
	index      int
	generation uint64
	started    time.Time
}

// RequestError is returned when a model request fails after it started. Its
// message is the text shown to the user.
type RequestError struct {
	Kind    Kind
	Index   int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
