package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/inhaletech/inhalyzer/internal/models"
)

// utf8BOM makes the artifact open correctly in spreadsheet tools.
const utf8BOM = "\ufeff"

const undetected = "-"

// CSV renders a finalized analysis result as a UTF-8 CSV artifact with a
// fixed section layout: analysis-info block, reference-times block (only
// if present), one row per action step, summary block (only if present).
// Rows are \n separated; fields containing commas or quotes are quoted.
func CSV(result *models.AnalysisResult, now time.Time) []byte {
	var rows []string

	rows = append(rows, "Analysis Info,Value")
	deviceType := result.DeviceType
	if deviceType == "" {
		deviceType = undetected
	}
	rows = append(rows, "Device Type,"+field(deviceType))

	if result.VideoInfo != nil {
		rows = append(rows, "File Name,"+field(result.VideoInfo.FileName))
		rows = append(rows, fmt.Sprintf("Duration,%.1fs", result.VideoInfo.Duration))
		rows = append(rows, "File Size,"+field(FormatFileSize(result.VideoInfo.Size)))
		rows = append(rows, "Resolution,"+field(result.VideoInfo.Resolution))
	}

	if result.ModelInfo != nil {
		rows = append(rows, "Models,"+field(strings.Join(result.ModelInfo.Models, ", ")))
	}

	rows = append(rows, "Analysis Date,"+now.Format("2006-01-02 15:04:05"))
	rows = append(rows, "")

	if result.ReferenceTimes != nil {
		rows = append(rows, "Reference Point,Time (s)")
		rows = append(rows, fmt.Sprintf("Inhaler appears (inhalerIN),%.1f", result.ReferenceTimes.InhalerIN))
		rows = append(rows, fmt.Sprintf("Mouth on inhaler (faceONinhaler),%.1f", result.ReferenceTimes.FaceONInhaler))
		rows = append(rows, fmt.Sprintf("Inhaler leaves (inhalerOUT),%.1f", result.ReferenceTimes.InhalerOUT))
		rows = append(rows, "")
	}

	rows = append(rows, "Action Step,Result,Time (s),Confidence (%)")
	for _, step := range result.ActionSteps {
		timeStr := undetected
		if len(step.Time) > 0 {
			timeStr = FormatTime(step.Time[0])
		}
		confidenceStr := undetected
		if len(step.ConfidenceScore) > 0 {
			confidenceStr = fmt.Sprintf("%.0f", step.ConfidenceScore[0][1]*100)
		}
		rows = append(rows, fmt.Sprintf("%s,%s,%s,%s",
			field(fmt.Sprintf("%d. %s", step.Order, step.Name)),
			resultLabel(step.Result),
			timeStr,
			confidenceStr))
	}
	rows = append(rows, "")

	if result.Summary != nil {
		rows = append(rows, "Summary,Value")
		rows = append(rows, fmt.Sprintf("Total Steps,%d", result.Summary.TotalSteps))
		rows = append(rows, fmt.Sprintf("Passed Steps,%d", result.Summary.PassedSteps))
		rows = append(rows, fmt.Sprintf("Failed Steps,%d", result.Summary.FailedSteps))
		rows = append(rows, "Score,"+FormatPercentage(result.Summary.Score))
	}

	return []byte(utf8BOM + strings.Join(rows, "\n"))
}

// resultLabel is the localized pass/fail label used in exports.
func resultLabel(r models.StepResult) string {
	switch r {
	case models.StepPass:
		return "Pass"
	case models.StepFail:
		return "Fail"
	case models.StepUnknown:
		return "Unknown"
	default:
		return undetected
	}
}

// field quotes a CSV value when it contains a delimiter or quote.
func field(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
