package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/photo-edit-mcp/internal/export"
	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
	"github.com/ironsheep/photo-edit-mcp/internal/providers"
	"github.com/ironsheep/photo-edit-mcp/internal/viewport"
)

// Errors returned by Session commands. The messages of ErrNoImage and
// ErrPromptRequired are shown to the user as-is.
var (
	ErrNoImage         = errors.New("Please upload an image first.")
	ErrPromptRequired  = errors.New("Please enter a prompt to describe the edit.")
	ErrRequestInFlight = errors.New("a request of this kind is already in progress")
	ErrIndexOutOfRange = errors.New("image index out of range")
	ErrNoOutput        = errors.New("no image available for this variant")
	ErrNoCrop          = errors.New("no crop in progress")
	ErrNoImageReturned = errors.New("model returned no image")
	ErrStaleResult     = errors.New("image set was replaced while the request was running")
)

// Options configures a Session.
type Options struct {
	// Transformer applies brightness/contrast before model calls. Defaults to
	// the imaging backend.
	Transformer imaging.Transformer

	// MaintainConsistency is the initial state of the identity-preservation
	// toggle.
	MaintainConsistency bool

	// DevicePixelRatio is used by crop exports that do not pass their own.
	DevicePixelRatio float64

	// Now is the clock used for export names. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is the edit orchestrator. It exclusively owns the image set, the
// active index, the adjustment parameters and every request state and
// output. Views read it through Snapshot and the accessors and report user
// intent through its command methods.
//
// Session is safe for concurrent use. Model calls run without holding the
// session lock; their results are applied when they complete.
type Session struct {
	provider    providers.Provider
	transformer imaging.Transformer
	cache       *imaging.Cache
	now         func() time.Time
	log         *slog.Logger
	dpr         float64

	mu          sync.Mutex
	images      []*imaging.SourceImage
	active      int
	generation  uint64
	adjust      imaging.Adjustment
	consistency bool
	results     map[slot]RequestState
	inFlight    map[Kind]flight
	lastErr     string
	views       map[Variant]*viewport.Viewport
	crop        *cropSession
}

// New creates an empty session that sends model requests to provider.
func New(provider providers.Provider, opts Options) *Session {
	if opts.Transformer == nil {
		opts.Transformer = imaging.ImagingTransformer{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DevicePixelRatio <= 0 {
		opts.DevicePixelRatio = 1
	}

	views := make(map[Variant]*viewport.Viewport, len(Variants))
	for _, v := range Variants {
		views[v] = viewport.New()
	}

	return &Session{
		provider:    provider,
		transformer: opts.Transformer,
		cache:       imaging.NewCache(),
		now:         opts.Now,
		log:         opts.Logger,
		dpr:         opts.DevicePixelRatio,
		active:      -1,
		adjust:      imaging.DefaultAdjustment(),
		consistency: opts.MaintainConsistency,
		results:     make(map[slot]RequestState),
		inFlight:    make(map[Kind]flight),
		views:       views,
	}
}

// Upload decodes a batch of files and, if every file decodes, replaces the
// image set. A successful upload is a full reset: the first image becomes
// active, adjustments return to 100/100, and all outputs, request states
// and errors are cleared. A failed upload leaves the session untouched apart
// from the recorded error.
func (s *Session) Upload(ctx context.Context, uploads []imaging.Upload) error {
	images, err := imaging.Ingest(ctx, uploads)
	if err != nil {
		s.log.Warn("Upload rejected", "files", len(uploads), "err", err)
		s.mu.Lock()
		s.lastErr = "Failed to read the image file: " + err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = images
	s.generation++
	s.active = -1
	if len(images) > 0 {
		s.active = 0
	}
	s.adjust = imaging.DefaultAdjustment()
	s.results = make(map[slot]RequestState)
	s.lastErr = ""
	s.crop = nil
	s.cache.Clear()
	s.refreshViewsLocked()

	s.log.Info("Image set replaced", "images", len(images), "generation", s.generation)
	return nil
}

// Select makes the image at index active. Adjustments are left as they are.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.images) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.active = index
	s.refreshViewsLocked()
	return nil
}

// Active returns the active index, or -1 when the set is empty.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Image returns the source image at index.
func (s *Session) Image(index int) (*imaging.SourceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.images) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.images[index], nil
}

// SetAdjustment replaces the brightness/contrast pair. The pair is shared by
// the whole set and applies to whichever image is active.
func (s *Session) SetAdjustment(a imaging.Adjustment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.adjust = a
	s.mu.Unlock()
	return nil
}

// ResetAdjustment restores 100/100.
func (s *Session) ResetAdjustment() {
	s.mu.Lock()
	s.adjust = imaging.DefaultAdjustment()
	s.mu.Unlock()
}

// Adjustment returns the current brightness/contrast pair.
func (s *Session) Adjustment() imaging.Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjust
}

// SetMaintainConsistency toggles the identity-preservation preamble.
func (s *Session) SetMaintainConsistency(on bool) {
	s.mu.Lock()
	s.consistency = on
	s.mu.Unlock()
}

// MaintainConsistency reports the toggle state.
func (s *Session) MaintainConsistency() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consistency
}

// LastError returns the user-visible error, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError dismisses the user-visible error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// Busy reports whether a request of kind is in flight.
func (s *Session) Busy(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[kind]
	return ok
}

// State returns the request state of the (index, kind) slot.
func (s *Session) State(index int, kind Kind) RequestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(index, kind)
}

func (s *Session) stateLocked(index int, kind Kind) RequestState {
	if f, ok := s.inFlight[kind]; ok && f.index == index && f.generation == s.generation {
		return Requesting{Started: f.started}
	}
	if st, ok := s.results[slot{index, kind}]; ok {
		return st
	}
	return Idle{}
}

// Output returns the generated output of kind for the image at index.
func (s *Session) Output(index int, kind Kind) (Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stateLocked(index, kind).(Succeeded); ok {
		return st.Output, true
	}
	return Output{}, false
}

// Generate asks the model to edit the active image according to prompt.
//
// The request is rejected locally, before any model call, when no image is
// active, when prompt is blank, or when an edit is already in flight. The
// model receives the brightness/contrast-adjusted pixels when the adjustment
// is not the identity.
func (s *Session) Generate(ctx context.Context, prompt string) (*Output, error) {
	return s.run(ctx, KindEdit, func() (string, error) {
		if isBlank(prompt) {
			return "", ErrPromptRequired
		}
		return BuildEditPrompt(prompt, s.consistency), nil
	})
}

// RemoveBackground asks the model to remove the background of the active
// image. It follows the same rules as Generate with a fixed prompt.
func (s *Session) RemoveBackground(ctx context.Context) (*Output, error) {
	return s.run(ctx, KindBackgroundRemoval, func() (string, error) {
		return BackgroundRemovalPrompt, nil
	})
}

// pending captures everything a request needs at start time.
type pending struct {
	kind       Kind
	index      int
	generation uint64
	source     imaging.EncodedBitmap
	adjust     imaging.Adjustment
	prompt     string
}

func (s *Session) run(ctx context.Context, kind Kind, prompt func() (string, error)) (*Output, error) {
	req, err := s.begin(kind, prompt)
	if err != nil {
		return nil, err
	}

	out, err := s.execute(ctx, req)
	return s.finish(req, out, err)
}

// begin validates preconditions and moves the slot to Requesting.
func (s *Session) begin(kind Kind, buildPrompt func() (string, error)) (*pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active < 0 {
		s.lastErr = ErrNoImage.Error()
		return nil, ErrNoImage
	}
	text, err := buildPrompt()
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	if _, busy := s.inFlight[kind]; busy {
		return nil, ErrRequestInFlight
	}

	req := &pending{
		kind:       kind,
		index:      s.active,
		generation: s.generation,
		source:     s.images[s.active].Bitmap,
		adjust:     s.adjust,
		prompt:     text,
	}

	delete(s.results, slot{req.index, kind})
	s.inFlight[kind] = flight{index: req.index, generation: req.generation, started: s.now()}
	s.lastErr = ""
	s.refreshViewsLocked()

	s.log.Info("Model request started", "kind", kind, "index", req.index, "adjusted", !req.adjust.IsIdentity())
	return req, nil
}

// execute runs the adjustment and the model call without holding the lock.
func (s *Session) execute(ctx context.Context, req *pending) (*Output, error) {
	payload := req.source
	if !req.adjust.IsIdentity() {
		adjusted, err := s.transformer.Adjust(req.source, req.adjust)
		if err != nil {
			return nil, &RequestError{
				Kind:    req.kind,
				Index:   req.index,
				Message: "Failed to apply adjustments: " + err.Error(),
				Err:     err,
			}
		}
		payload = adjusted
	}

	resp, err := s.provider.EditImage(ctx, providers.Request{
		Image:    payload.Data,
		MimeType: payload.MimeType,
		Prompt:   req.prompt,
	})
	if err != nil {
		return nil, &RequestError{
			Kind:    req.kind,
			Index:   req.index,
			Message: "An error occurred: " + err.Error(),
			Err:     err,
		}
	}

	if !resp.HasImage() {
		msg := strings.TrimSpace(resp.Text)
		if msg == "" {
			msg = RefusalMessage
		}
		return nil, &RequestError{Kind: req.kind, Index: req.index, Message: msg, Err: ErrNoImageReturned}
	}

	mime := resp.MimeType
	if mime == "" {
		mime = imaging.MimePNG
	}
	return &Output{
		Kind:   req.kind,
		Index:  req.index,
		Bitmap: imaging.EncodedBitmap{MimeType: mime, Data: resp.Image},
	}, nil
}

// finish applies the result to the slot captured at start, even if the user
// has since selected another image. Results for a replaced image set are
// discarded.
func (s *Session) finish(req *pending, out *Output, runErr error) (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, req.kind)

	if req.generation != s.generation {
		s.log.Info("Discarding result for replaced image set", "kind", req.kind, "index", req.index)
		return nil, ErrStaleResult
	}

	key := slot{req.index, req.kind}
	if runErr != nil {
		msg := runErr.Error()
		s.results[key] = Failed{Message: msg}
		s.lastErr = msg
		s.log.Warn("Model request failed", "kind", req.kind, "index", req.index, "err", runErr)
		return nil, runErr
	}

	s.results[key] = Succeeded{Output: *out}
	s.refreshViewsLocked()
	s.log.Info("Model request succeeded", "kind", req.kind, "index", req.index, "mime_type", out.Bitmap.MimeType, "bytes", len(out.Bitmap.Data))
	return out, nil
}

// bitmapLocked resolves the bitmap shown for (index, variant).
func (s *Session) bitmapLocked(index int, v Variant) (imaging.EncodedBitmap, error) {
	if index < 0 || index >= len(s.images) {
		return imaging.EncodedBitmap{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	switch v {
	case VariantOriginal:
		return s.images[index].Bitmap, nil
	case VariantEdited, VariantBackgroundRemoved:
		kind := KindEdit
		if v == VariantBackgroundRemoved {
			kind = KindBackgroundRemoval
		}
		if st, ok := s.stateLocked(index, kind).(Succeeded); ok {
			return st.Output.Bitmap, nil
		}
		return imaging.EncodedBitmap{}, ErrNoOutput
	}
	return imaging.EncodedBitmap{}, fmt.Errorf("unknown variant: %s", v)
}

// decodedLocked returns the pixels for (index, variant).
func (s *Session) decodedLocked(index int, v Variant) (image.Image, error) {
	b, err := s.bitmapLocked(index, v)
	if err != nil {
		return nil, err
	}
	if v == VariantOriginal {
		return s.images[index].Image(), nil
	}
	return s.cache.Decode(b)
}

func (s *Session) resolveIndexLocked(index int) int {
	if index < 0 {
		return s.active
	}
	return index
}

// Download is an exportable file.
type Download struct {
	Name   string                `json:"name"`
	Bitmap imaging.EncodedBitmap `json:"bitmap"`
}

// Download prepares the file for (index, variant). A negative index means the
// active image.
func (s *Session) Download(index int, v Variant) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index = s.resolveIndexLocked(index)
	if index < 0 {
		return nil, ErrNoImage
	}
	b, err := s.bitmapLocked(index, v)
	if err != nil {
		return nil, err
	}
	return &Download{
		Name:   export.FileName(s.images[index].Name, v.Suffix(), b.Extension(), s.now()),
		Bitmap: b,
	}, nil
}

// View runs fn against the viewport that displays variant and returns its
// resulting state. fn may be nil to read the state only.
func (s *Session) View(v Variant, fn func(*viewport.Viewport)) (viewport.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, ok := s.views[v]
	if !ok {
		return viewport.State{}, fmt.Errorf("unknown variant: %s", v)
	}
	if fn != nil {
		fn(vp)
	}
	return vp.State(), nil
}

// refreshViewsLocked tells each viewport what it now displays so zoom state
// resets whenever the bitmap changes.
func (s *Session) refreshViewsLocked() {
	for v, vp := range s.views {
		identity := ""
		if s.active >= 0 {
			if b, err := s.bitmapLocked(s.active, v); err == nil {
				identity = fmt.Sprintf("%d/%s/%s", s.active, v, b.ID())
			}
		}
		vp.Show(identity)
	}
}

// Preview is the effect of the current adjustment on the active image.
type Preview struct {
	Adjustment imaging.Adjustment    `json:"adjustment"`
	Before     imaging.Stats         `json:"before"`
	After      imaging.Stats         `json:"after"`
	Bitmap     imaging.EncodedBitmap `json:"-"`
}

// PreviewAdjustment renders the active image with the current adjustment.
// The source image is not modified.
func (s *Session) PreviewAdjustment() (*Preview, error) {
	s.mu.Lock()
	if s.active < 0 {
		s.mu.Unlock()
		return nil, ErrNoImage
	}
	src := s.images[s.active]
	adj := s.adjust
	s.mu.Unlock()

	before := imaging.Summarize(src.Image())
	if adj.IsIdentity() {
		return &Preview{Adjustment: adj, Before: before, After: before, Bitmap: src.Bitmap}, nil
	}

	out, err := s.transformer.Adjust(src.Bitmap, adj)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(out)
	if err != nil {
		return nil, err
	}
	return &Preview{Adjustment: adj, Before: before, After: imaging.Summarize(img), Bitmap: out}, nil
}

// Snapshot is a read-only view of the whole session.
type Snapshot struct {
	Images              []ImageSummary     `json:"images"`
	ActiveIndex         *int               `json:"active_index"`
	Adjustment          imaging.Adjustment `json:"adjustment"`
	Adjusted            bool               `json:"adjusted"`
	MaintainConsistency bool               `json:"maintain_consistency"`
	Busy                map[Kind]bool      `json:"busy"`
	Error               string             `json:"error,omitempty"`
	Crop                *CropState         `json:"crop,omitempty"`
}

// ImageSummary describes one image-set entry and its request slots.
type ImageSummary struct {
	Index    int                     `json:"index"`
	Name     string                  `json:"name"`
	MimeType string                  `json:"mime_type"`
	Width    int                     `json:"width"`
	Height   int                     `json:"height"`
	Requests map[Kind]RequestSummary `json:"requests"`
}

// RequestSummary flattens a RequestState for serialization.
type RequestSummary struct {
	Phase       Phase  `json:"phase"`
	Message     string `json:"message,omitempty"`
	OutputMime  string `json:"output_mime_type,omitempty"`
	OutputBytes int    `json:"output_bytes,omitempty"`
}

func summarize(st RequestState) RequestSummary {
	sum := RequestSummary{Phase: st.Phase()}
	switch st := st.(type) {
	case Succeeded:
		sum.OutputMime = st.Output.Bitmap.MimeType
		sum.OutputBytes = len(st.Output.Bitmap.Data)
	case Failed:
		sum.Message = st.Message
	}
	return sum
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Images:              make([]ImageSummary, 0, len(s.images)),
		Adjustment:          s.adjust,
		Adjusted:            !s.adjust.IsIdentity(),
		MaintainConsistency: s.consistency,
		Busy:                make(map[Kind]bool, len(Kinds)),
		Error:               s.lastErr,
	}
	if s.active >= 0 {
		active := s.active
		snap.ActiveIndex = &active
	}
	for _, k := range Kinds {
		_, snap.Busy[k] = s.inFlight[k]
	}
	for i, img := range s.images {
		sum := ImageSummary{
			Index:    i,
			Name:     img.Name,
			MimeType: img.Bitmap.MimeType,
			Width:    img.Width,
			Height:   img.Height,
			Requests: make(map[Kind]RequestSummary, len(Kinds)),
		}
		for _, k := range Kinds {
			sum.Requests[k] = summarize(s.stateLocked(i, k))
		}
		snap.Images = append(snap.Images, sum)
	}
	if s.crop != nil {
		st := s.crop.state()
		snap.Crop = &st
	}
	return snap
}
