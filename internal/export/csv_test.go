package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inhaletech/inhalyzer/internal/models"
)

func fullResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Status:     "completed",
		DeviceType: "DPI_type1",
		VideoInfo: &models.VideoMetadata{
			FileName:   "technique.mp4",
			Duration:   20.5,
			Size:       12 * 1024 * 1024,
			Resolution: "1920x1080",
		},
		ReferenceTimes: &models.ReferenceTimes{
			InhalerIN:     1.2,
			FaceONInhaler: 4.7,
			InhalerOUT:    12.3,
		},
		ActionSteps: []models.ActionStep{
			{Order: 1, Name: "Sit or stand upright", Time: []float64{1.5}, ConfidenceScore: [][2]float64{{1.5, 0.92}}, Result: models.StepPass},
			{Order: 2, Name: "Exhale away from mouthpiece, then seal lips", Time: []float64{}, ConfidenceScore: [][2]float64{}, Result: models.StepFail},
			{Order: 3, Name: "Hold breath", Time: []float64{8.1, 9.3}, ConfidenceScore: [][2]float64{{8.1, 0.755}}, Result: models.StepPass},
		},
		Summary: &models.AnalysisSummary{TotalSteps: 3, PassedSteps: 2, FailedSteps: 1, Score: 66.7},
		ModelInfo: &models.ModelInfo{
			Models: []string{"gpt-4o-mini", "gpt-4o"},
		},
	}
}

func csvRows(t *testing.T, data []byte) []string {
	t.Helper()
	body, ok := strings.CutPrefix(string(data), utf8BOM)
	require.True(t, ok, "artifact must start with the UTF-8 BOM")
	return strings.Split(body, "\n")
}

func TestCSV_StartsWithBOM(t *testing.T) {
	data := CSV(fullResult(), time.Now())
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
}

func TestCSV_SectionLayout(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	rows := csvRows(t, CSV(fullResult(), now))

	// Fixed overhead for a full result: 7 info rows, 4 reference rows,
	// 1 step header, 5 summary rows, 3 blank separators.
	steps := 3
	assert.Len(t, rows, 7+4+1+5+3+steps)

	assert.Equal(t, "Analysis Info,Value", rows[0])
	assert.Equal(t, "Device Type,DPI_type1", rows[1])
	assert.Equal(t, "File Name,technique.mp4", rows[2])
	assert.Equal(t, "Duration,20.5s", rows[3])
	assert.Equal(t, "File Size,12.00 MB", rows[4])
	assert.Equal(t, "Resolution,1920x1080", rows[5])
	assert.Equal(t, `Models,"gpt-4o-mini, gpt-4o"`, rows[6])
	assert.Equal(t, "Analysis Date,2026-08-28 10:30:00", rows[7])
	assert.Empty(t, rows[8])

	assert.Equal(t, "Reference Point,Time (s)", rows[9])
	assert.Equal(t, "Inhaler appears (inhalerIN),1.2", rows[10])
	assert.Equal(t, "Mouth on inhaler (faceONinhaler),4.7", rows[11])
	assert.Equal(t, "Inhaler leaves (inhalerOUT),12.3", rows[12])
	assert.Empty(t, rows[13])

	assert.Equal(t, "Action Step,Result,Time (s),Confidence (%)", rows[14])
	assert.Equal(t, "1. Sit or stand upright,Pass,1.5,92", rows[15])
	assert.Equal(t, `"2. Exhale away from mouthpiece, then seal lips",Fail,-,-`, rows[16])
	assert.Equal(t, "3. Hold breath,Pass,8.1,76", rows[17])
	assert.Empty(t, rows[18])

	assert.Equal(t, "Summary,Value", rows[19])
	assert.Equal(t, "Total Steps,3", rows[20])
	assert.Equal(t, "Passed Steps,2", rows[21])
	assert.Equal(t, "Failed Steps,1", rows[22])
	assert.Equal(t, "Score,67%", rows[23])
}

func TestCSV_RowCountGrowsWithSteps(t *testing.T) {
	now := time.Now()
	base := len(csvRows(t, CSV(fullResult(), now)))

	grown := fullResult()
	grown.ActionSteps = append(grown.ActionSteps, models.ActionStep{
		Order: 4, Name: "Replace cover", Result: models.StepUnknown,
	})

	assert.Equal(t, base+1, len(csvRows(t, CSV(grown, now))))
}

func TestCSV_UndetectedStepUsesSentinels(t *testing.T) {
	result := fullResult()
	rows := csvRows(t, CSV(result, time.Now()))

	var undetectedRow string
	for _, row := range rows {
		if strings.HasPrefix(row, `"2. `) {
			undetectedRow = row
		}
	}
	require.NotEmpty(t, undetectedRow)
	assert.True(t, strings.HasSuffix(undetectedRow, ",Fail,-,-"))
}

func TestCSV_OptionalSectionsOmitted(t *testing.T) {
	result := &models.AnalysisResult{
		Status:     "completed",
		DeviceType: "pMDI_type2",
		ActionSteps: []models.ActionStep{
			{Order: 1, Name: "Shake inhaler", Time: []float64{2.0}, ConfidenceScore: [][2]float64{{2.0, 0.8}}, Result: models.StepPass},
		},
	}

	rows := csvRows(t, CSV(result, time.Now()))
	joined := strings.Join(rows, "\n")
	assert.NotContains(t, joined, "Reference Point")
	assert.NotContains(t, joined, "Summary,Value")
	assert.NotContains(t, joined, "File Name")

	// 2 info rows, step header, 1 step, 2 blank separators.
	assert.Len(t, rows, 2+1+1+1+2)
}

func TestCSV_QuotesFieldsWithDelimiters(t *testing.T) {
	result := fullResult()
	result.ActionSteps = []models.ActionStep{
		{Order: 1, Name: `Press canister, inhale "slowly"`, Time: []float64{3.0}, ConfidenceScore: [][2]float64{{3.0, 0.9}}, Result: models.StepPass},
	}

	rows := csvRows(t, CSV(result, time.Now()))
	joined := strings.Join(rows, "\n")
	assert.Contains(t, joined, `"1. Press canister, inhale ""slowly""",Pass,3.0,90`)
}

func TestCSV_MissingDeviceTypeUsesSentinel(t *testing.T) {
	result := fullResult()
	result.DeviceType = ""

	rows := csvRows(t, CSV(result, time.Now()))
	assert.Equal(t, "Device Type,-", rows[1])
}
