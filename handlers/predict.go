package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"churn-prediction-api/logger"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"

	"github.com/gin-gonic/gin"
)

const exportFilename = "churn_predictions.csv"

type PredictHandler struct {
	predictions *services.PredictionService
	maxUpload   int64
	log         *logger.Logger
}

func NewPredictHandler(predictions *services.PredictionService, maxUploadMB int, log *logger.Logger) *PredictHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &PredictHandler{
		predictions: predictions,
		maxUpload:   int64(maxUploadMB) << 20,
		log:         log,
	}
}

// Predict scores a single JSON record. Every field is optional and values
// may be strings or numbers.
func (h *PredictHandler) Predict(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	res, err := h.predictions.PredictSingle(c.Request.Context(), pipeline.RawRecord(raw))
	if err != nil {
		respondPredictionError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type BatchStats struct {
	TotalRows   int `json:"total_rows"`
	LikelyChurn int `json:"likely_churn"`
	Safe        int `json:"safe"`
}

type BatchResponse struct {
	BatchID           string            `json:"batch_id"`
	Processed         int               `json:"processed"`
	ResultsPreview    []pipeline.Result `json:"results_preview"`
	AutoFilledColumns []string          `json:"auto_filled_columns"`
	Stats             BatchStats        `json:"stats"`
	Summary           string            `json:"summary"`
	Message           string            `json:"message"`
}

// PredictBatch scores an uploaded CSV. With ?download=true the response is
// the uploaded file with churn_probability and prediction_label appended.
func (h *PredictHandler) PredictBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds " + strconv.FormatInt(h.maxUpload>>20, 10) + " MB"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgUploadCSV})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgUploadCSV})
		return
	}
	download, _ := strconv.ParseBool(c.Query("download"))

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read CSV file"})
		return
	}
	defer f.Close()

	res, err := h.predictions.PredictBatch(c.Request.Context(), f, !download)
	if err != nil {
		respondPredictionError(c, h.log, err)
		return
	}

	if download {
		var buf bytes.Buffer
		if err := pipeline.WriteExport(&buf, res.Table, res.Results); err != nil {
			respondPredictionError(c, h.log, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, BatchResponse{
		BatchID:           res.BatchID,
		Processed:         len(res.Results),
		ResultsPreview:    pipeline.Preview(res.Results, pipeline.PreviewSize),
		AutoFilledColumns: res.AutoFilled,
		Stats: BatchStats{
			TotalRows:   res.Outcome.TotalRows,
			LikelyChurn: res.Outcome.LikelyChurn,
			Safe:        res.Outcome.Safe,
		},
		Summary: res.Summary,
		Message: "Batch prediction completed",
	})
}
