package analyse

import (
	"context"
	"errors"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strconv"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/services/index/domain"
)

// Image records the format and dimensions of GIF, JPEG and PNG payloads
// Other image types pass through without attributes.
type Image struct{}

// Name implements Analyser
func (Image) Name() string { return "image" }

// Caps implements Analyser
func (Image) Caps() Capability { return CapImage | CapMetadata }

// Analyse implements Analyser
func (Image) Analyse(ctx context.Context, in *Input, res *domain.Result) error {
	cfg, format, err := image.DecodeConfig(in.Body)
	if errors.Is(err, image.ErrFormat) {
		return nil
	}
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeCorrupt, "image header")
	}
	setAttr(res, "image_format", format)
	setAttr(res, "image_width", strconv.Itoa(cfg.Width))
	setAttr(res, "image_height", strconv.Itoa(cfg.Height))
	setAttr(res, "image_pixels", strconv.Itoa(cfg.Width*cfg.Height))
	return ctx.Err()
}
