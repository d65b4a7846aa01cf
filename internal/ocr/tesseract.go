// Package ocr recognises text in images with Tesseract.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Whitelist restricts recognition to ASCII letters.
const Whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Tesseract implements detector.TextRecognizer. A new engine client is created
// per call because a gosseract client must not be shared between goroutines.
type Tesseract struct {
	language string
}

// NewTesseract creates a recogniser for the given language model, e.g. "eng".
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}
}

// Recognize returns the text found in img.
func (t *Tesseract) Recognize(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image for ocr: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("failed to set ocr language %q: %w", t.language, err)
	}
	if err := client.SetWhitelist(Whitelist); err != nil {
		return "", fmt.Errorf("failed to set ocr whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to load image into ocr engine: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}
