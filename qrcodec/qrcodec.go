// Package qrcodec renders frames as QR symbols and reads them back.
//
// It is the optical edge of a transfer: qrxfer produces and consumes
// frame text, this package turns that text into images and images into
// text.
package qrcodec

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/drunlade/go-qrsz/qrxfer"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	goqr "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered image width and height in pixels.
const DefaultSize = 512

// Codec is the pair of operations a transfer needs from a QR library.
type Codec interface {
	Render(text string) (image.Image, error)
	Read(img image.Image) (string, error)
}

// QRCodec implements Codec.
type QRCodec struct {
	// Size is the image edge in pixels. Symbols with more modules than
	// pixels are rendered at one pixel per module.
	Size int

	// Level is the error correction level. Low leaves the most room for
	// data, which a version 40 symbol needs to carry a full chunk.
	Level goqr.RecoveryLevel
}

// New returns a codec rendering size x size images at level Low.
func New(size int) *QRCodec {
	if size <= 0 {
		size = DefaultSize
	}
	return &QRCodec{Size: size, Level: goqr.Low}
}

func codecError(op string, err error) error {
	return qrxfer.NewError(qrxfer.ErrCodec, fmt.Sprintf("%s: %v", op, err))
}

func (c *QRCodec) symbol(text string) (*goqr.QRCode, error) {
	q, err := goqr.New(text, c.Level)
	if err != nil {
		return nil, codecError("render", err)
	}
	return q, nil
}

// Render encodes text as a QR symbol image.
func (c *QRCodec) Render(text string) (image.Image, error) {
	q, err := c.symbol(text)
	if err != nil {
		return nil, err
	}
	return q.Image(c.Size), nil
}

// Terminal renders text as a QR symbol drawn with half-block characters,
// two modules per character row.
func (c *QRCodec) Terminal(text string) (string, error) {
	q, err := c.symbol(text)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

// Read decodes the QR symbol in img.
func (c *QRCodec) Read(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", codecError("read", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", codecError("read", err)
	}
	return result.GetText(), nil
}

// WritePNG renders text into a PNG file.
func (c *QRCodec) WritePNG(path, text string) error {
	img, err := c.Render(text)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes an image file (PNG, JPEG or GIF) and reads the QR
// symbol in it.
func ReadFile(c Codec, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", codecError("decode "+path, err)
	}
	return c.Read(img)
}

// CheckFrames fails if the longest of frames does not fit in one symbol
// at the codec's level. Every frame carries '|', so all encode in byte
// mode and length alone decides.
func (c *QRCodec) CheckFrames(frames []string) error {
	longest := -1
	for i, f := range frames {
		if longest < 0 || len(f) > len(frames[longest]) {
			longest = i
		}
	}
	if longest < 0 {
		return nil
	}
	if _, err := goqr.New(frames[longest], c.Level); err != nil {
		return qrxfer.NewError(qrxfer.ErrCodec,
			fmt.Sprintf("frame %d (%d bytes) does not fit one QR symbol: %v", longest, len(frames[longest]), err))
	}
	return nil
}
