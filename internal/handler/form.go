package handler

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"churn-predictor/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const homeTemplate = "home.html"

// formFields maps the form inputs query1..query19 to schema fields.
var formFields = []string{
	"SeniorCitizen",
	"MonthlyCharges",
	"TotalCharges",
	"gender",
	"Partner",
	"Dependents",
	"PhoneService",
	"MultipleLines",
	"InternetService",
	"OnlineSecurity",
	"OnlineBackup",
	"DeviceProtection",
	"TechSupport",
	"StreamingTV",
	"StreamingMovies",
	"Contract",
	"PaperlessBilling",
	"PaymentMethod",
	"tenure",
}

func formKey(i int) string {
	return fmt.Sprintf("query%d", i+1)
}

func parseTemplates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}

// HomePage renders the empty form.
func (h *Handler) HomePage(c *gin.Context) {
	c.HTML(http.StatusOK, homeTemplate, gin.H{})
}

// SubmitForm scores the submitted form and renders the result next to the
// submitted values.
func (h *Handler) SubmitForm(c *gin.Context) {
	raw := make(models.Fields, len(formFields))
	page := gin.H{}
	for i, name := range formFields {
		v := c.PostForm(formKey(i))
		raw[name] = v
		page[formKey(i)] = v
	}

	outcome, err := h.predictor.Predict(c.Request.Context(), raw)
	if err != nil {
		h.logger.Error("Form prediction failed", zap.Error(err))
		c.HTML(http.StatusOK, homeTemplate, gin.H{
			"output1": "System error: " + err.Error(),
			"output2": "Please try again",
		})
		return
	}

	if outcome.Rejected() {
		page["output1"] = "Please fix these errors: " + strings.Join(outcome.Errors, ", ")
		page["output2"] = ""
		c.HTML(http.StatusOK, homeTemplate, page)
		return
	}

	page["output1"] = "This customer is " + outcome.Label + "!!"
	page["output2"] = fmt.Sprintf("Confidence: %.2f%%", outcome.Confidence)
	page["warnings"] = outcome.Warnings
	c.HTML(http.StatusOK, homeTemplate, page)
}
