package studio

import (
	"errors"

	"github.com/ironsheep/photo-edit-mcp/internal/export"
	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
)

// cropSession is the transient crop state. It lives while a crop is open and
// is dropped when the image set is replaced.
type cropSession struct {
	index   int
	variant Variant
	name    string
	editor  *imaging.CropEditor
}

// CropState is a read-only view of an open crop.
type CropState struct {
	Index     int                 `json:"index"`
	Variant   Variant             `json:"variant"`
	Aspect    imaging.AspectRatio `json:"aspect"`
	Selection imaging.Rect        `json:"selection"`
	Display   imaging.Size        `json:"display"`
	Natural   imaging.Size        `json:"natural"`
	CanExport bool                `json:"can_export"`
}

func (c *cropSession) state() CropState {
	n := c.editor.Natural()
	return CropState{
		Index:     c.index,
		Variant:   c.variant,
		Aspect:    c.editor.Aspect(),
		Selection: c.editor.Selection(),
		Display:   c.editor.Display(),
		Natural:   imaging.Size{Width: float64(n.X), Height: float64(n.Y)},
		CanExport: c.editor.CanExport(),
	}
}

// OpenCrop starts a crop over (index, variant) as displayed at display. A
// negative index means the active image; a zero display size means natural
// size. Any crop already open is replaced.
func (s *Session) OpenCrop(index int, v Variant, display imaging.Size, aspect imaging.AspectRatio) (*CropState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index = s.resolveIndexLocked(index)
	if index < 0 {
		return nil, ErrNoImage
	}
	img, err := s.decodedLocked(index, v)
	if err != nil {
		return nil, err
	}

	s.crop = &cropSession{
		index:   index,
		variant: v,
		name:    s.images[index].Name,
		editor:  imaging.NewCropEditor(img, display, aspect),
	}
	st := s.crop.state()
	return &st, nil
}

// SetCropAspect changes the aspect constraint and re-derives the selection.
func (s *Session) SetCropAspect(aspect imaging.AspectRatio) (*CropState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return nil, ErrNoCrop
	}
	s.crop.editor.SetAspect(aspect)
	st := s.crop.state()
	return &st, nil
}

// SetCropSelection replaces the selection rectangle (display coordinates).
func (s *Session) SetCropSelection(r imaging.Rect) (*CropState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return nil, ErrNoCrop
	}
	s.crop.editor.SetSelection(r)
	st := s.crop.state()
	return &st, nil
}

// CurrentCrop returns the open crop, if any.
func (s *Session) CurrentCrop() (*CropState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return nil, false
	}
	st := s.crop.state()
	return &st, true
}

// CloseCrop discards the open crop without exporting.
func (s *Session) CloseCrop() {
	s.mu.Lock()
	s.crop = nil
	s.mu.Unlock()
}

// ExportCrop renders the selection at devicePixelRatio (the session default
// when <= 0) and closes the crop. An empty selection returns
// imaging.ErrEmptySelection and leaves the crop open. The source image is
// never modified.
func (s *Session) ExportCrop(devicePixelRatio float64) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return nil, ErrNoCrop
	}
	d, err := s.cropDownload(s.crop.name, s.crop.editor, devicePixelRatio)
	if err != nil {
		return nil, err
	}
	s.crop = nil
	return d, nil
}

// CropRequest describes a one-shot crop for clients that keep the selection
// state themselves.
type CropRequest struct {
	Index            int
	Variant          Variant
	Display          imaging.Size
	Aspect           imaging.AspectRatio
	Selection        *imaging.Rect
	DevicePixelRatio float64
}

// Crop exports a selection without opening an interactive crop. A nil
// Selection uses the initial centered selection.
func (s *Session) Crop(req CropRequest) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.resolveIndexLocked(req.Index)
	if index < 0 {
		return nil, ErrNoImage
	}
	img, err := s.decodedLocked(index, req.Variant)
	if err != nil {
		return nil, err
	}

	editor := imaging.NewCropEditor(img, req.Display, req.Aspect)
	if req.Selection != nil {
		editor.SetSelection(*req.Selection)
	}
	return s.cropDownload(s.images[index].Name, editor, req.DevicePixelRatio)
}

func (s *Session) cropDownload(name string, editor *imaging.CropEditor, dpr float64) (*Download, error) {
	if dpr <= 0 {
		dpr = s.dpr
	}
	result, err := editor.Export(dpr)
	if err != nil {
		if errors.Is(err, imaging.ErrEmptySelection) {
			s.log.Debug("Crop export ignored", "err", err)
		} else {
			s.log.Error("Cropping failed", "err", err)
		}
		return nil, err
	}
	return &Download{
		Name:   export.FileName(name, export.SuffixCropped, "png", s.now()),
		Bitmap: result.Bitmap,
	}, nil
}
