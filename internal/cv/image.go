package cv

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes 是头像允许的最大体积（2 MB）。
const MaxImageBytes = 2 << 20

var (
	ErrImageEmpty    = errors.New("image is empty")
	ErrImageTooLarge = errors.New("image exceeds 2 MB")
	ErrImageType     = errors.New("image type not allowed")
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// CheckImage 在交给 Store 之前校验用户选择的头像：按内容嗅探类型，并限制体积。
// Store 本身不做任何拒绝，这一步属于输入层。
func CheckImage(filename string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrImageType, mt.String())
	}
	return &Image{
		Filename:    filename,
		ContentType: mt.String(),
		Data:        data,
	}, nil
}

// ImageExtension 返回内容类型对应的扩展名（带点），未知类型返回 .bin。
func ImageExtension(contentType string) string {
	mt := mimetype.Lookup(contentType)
	if mt == nil || mt.Extension() == "" {
		return ".bin"
	}
	return mt.Extension()
}
