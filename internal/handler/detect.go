package handler

import (
	"errors"
	"image"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"momoguard/internal/detector"
)

const maxUploadSize = 20 << 20

// ImageClassifier is the detector surface exposed over HTTP.
type ImageClassifier interface {
	Classify(img image.Image) (detector.Result, error)
}

type DetectHandler interface {
	Detect(c *gin.Context)
}

type detectHandler struct {
	classifier ImageClassifier
	log        *logrus.Logger
}

func NewDetectHandler(classifier ImageClassifier, log *logrus.Logger) DetectHandler {
	return &detectHandler{classifier: classifier, log: log}
}

// Detect classifies the multipart "image" field.
func (h *detectHandler) Detect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'image' is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.log.Errorf("Failed to open uploaded image: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer file.Close()

	img, err := detector.DecodeImage(file)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported or corrupt image"})
		return
	}

	res, err := h.classifier.Classify(img)
	if err != nil {
		if errors.Is(err, detector.ErrOCREngine) {
			h.log.Errorf("OCR engine failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "OCR engine failed"})
			return
		}
		h.log.Errorf("Detection failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Detection failed"})
		return
	}

	resp := gin.H{"momo": res.Momo}
	if res.HasPixels {
		resp["distance"] = res.Distance
	}
	c.JSON(http.StatusOK, resp)
}
