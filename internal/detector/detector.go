// Package detector decides whether an image is a momo scam screenshot.
//
// The cheap check runs first: the dominant colour of the image must be close
// to MomoColor. When OCR is enabled, a positive colour result is then confirmed
// by looking for the word "momo" in the recognised text.
package detector

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrDecode is returned for bytes that are not a supported raster image.
	ErrDecode = errors.New("image decode failed")
	// ErrOCREngine is returned when the text recogniser cannot process an image.
	ErrOCREngine = errors.New("ocr engine failed")
)

var detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "momoguard_detections_total",
	Help: "Screenshot detector stage outcomes.",
}, []string{"stage", "result"})

// Keywords searched in OCR output. No case folding is applied.
var Keywords = []string{"Momo", "momo"}

// TextRecognizer extracts text from an image.
type TextRecognizer interface {
	Recognize(img image.Image) (string, error)
}

// Detector composes the colour classifier and the optional OCR confirmation.
type Detector struct {
	useOCR     bool
	recognizer TextRecognizer
	metric     ColorMetric
	reference  colorful.Color
	threshold  float64
}

// Option customises a Detector.
type Option func(*Detector)

// WithMetric replaces the CIEDE2000 metric.
func WithMetric(m ColorMetric) Option {
	return func(d *Detector) { d.metric = m }
}

// WithReference replaces MomoColor.
func WithReference(c colorful.Color) Option {
	return func(d *Detector) { d.reference = c }
}

// WithThreshold replaces MomoThreshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) { d.threshold = t }
}

// NewDetector creates a detector. useOCR is fixed for the detector's lifetime;
// recognizer may be nil only when useOCR is false.
func NewDetector(useOCR bool, recognizer TextRecognizer, opts ...Option) (*Detector, error) {
	if useOCR && recognizer == nil {
		return nil, fmt.Errorf("ocr enabled but no text recognizer configured")
	}
	d := &Detector{
		useOCR:     useOCR,
		recognizer: recognizer,
		metric:     CIEDE2000{},
		reference:  MomoColor,
		threshold:  MomoThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// OCREnabled reports whether positives are confirmed by OCR.
func (d *Detector) OCREnabled() bool {
	return d.useOCR
}

// ColorDistance returns the distance between the dominant colour of img and
// the reference colour. ok is false for an empty image.
func (d *Detector) ColorDistance(img image.Image) (distance float64, ok bool) {
	dominant, ok := DominantColor(img)
	if !ok {
		return 0, false
	}
	return d.metric.Distance(d.reference, dominant), true
}

// IsColorMatch reports whether the dominant colour of img is within the
// threshold of the reference colour.
func (d *Detector) IsColorMatch(img image.Image) bool {
	distance, ok := d.ColorDistance(img)
	return ok && distance < d.threshold
}

// ConfirmText runs the recogniser and looks for a keyword.
func (d *Detector) ConfirmText(img image.Image) (bool, error) {
	if d.recognizer == nil {
		return false, fmt.Errorf("%w: no text recognizer configured", ErrOCREngine)
	}
	text, err := d.recognizer.Recognize(img)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrOCREngine, err)
	}
	return ContainsKeyword(text), nil
}

// Result is the outcome of Classify.
type Result struct {
	// Distance is set only when HasPixels is true.
	Distance  float64
	HasPixels bool
	Momo      bool
}

// Classify scans img once and returns the colour distance with the verdict.
func (d *Detector) Classify(img image.Image) (Result, error) {
	distance, ok := d.ColorDistance(img)
	colorMatch := ok && distance < d.threshold
	detectionsTotal.WithLabelValues("color", resultLabel(colorMatch)).Inc()

	res := Result{Distance: distance, HasPixels: ok, Momo: colorMatch}
	if !d.useOCR || !colorMatch {
		return res, nil
	}

	textMatch, err := d.ConfirmText(img)
	if err != nil {
		detectionsTotal.WithLabelValues("ocr", "error").Inc()
		res.Momo = false
		return res, err
	}
	detectionsTotal.WithLabelValues("ocr", resultLabel(textMatch)).Inc()
	res.Momo = textMatch
	return res, nil
}

// Detect returns the screenshot verdict for img.
func (d *Detector) Detect(img image.Image) (bool, error) {
	res, err := d.Classify(img)
	return res.Momo, err
}

// ContainsKeyword reports whether text contains one of Keywords.
func ContainsKeyword(text string) bool {
	for _, kw := range Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func resultLabel(match bool) string {
	if match {
		return "match"
	}
	return "no_match"
}
