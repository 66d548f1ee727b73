package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"churn-predictor/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const exportLimit = 100000

// ExportCSV exports the prediction history to CSV, one column per input field
func (h *Handler) ExportCSV(c *gin.Context) {
	predictions, err := h.repo.List(c.Request.Context(), exportLimit)
	if err != nil {
		h.logger.Error("Failed to export CSV", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=predictions.csv")

	fields := validation.Fields()
	header := []string{"id", "created_at", "label", "churn", "churn_probability", "model_version"}
	for _, f := range fields {
		header = append(header, f.Name)
	}

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(header)

	for _, p := range predictions {
		row := []string{
			p.ID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.Label,
			strconv.FormatBool(p.Churn),
			strconv.FormatFloat(p.ChurnProbability, 'f', 4, 64),
			p.ModelVersion,
		}
		for _, f := range fields {
			row = append(row, p.Input[f.Name])
		}
		writer.Write(row)
	}
}
