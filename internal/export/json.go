package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inhaletech/inhalyzer/internal/models"
)

// JSON renders a structural, lossless serialization of the result.
// Pretty-printing is a presentation choice, not part of the contract.
func JSON(result *models.AnalysisResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis result: %w", err)
	}
	return data, nil
}

// Filename builds the artifact name. The device id and timestamp keep
// repeated exports within one session from colliding.
func Filename(deviceID, format string, now time.Time) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return fmt.Sprintf("inhaler_analysis_%s_%d.%s", deviceID, now.UnixMilli(), format)
}
