package models

// DeviceFamily is the coarse inhaler family the analysis backend keys its
// prompts on.
type DeviceFamily string

const (
	FamilyDPI  DeviceFamily = "DPI"
	FamilyPMDI DeviceFamily = "pMDI"
	FamilySMI  DeviceFamily = "SMI"
)

// Device is an immutable catalog entry. IDs form a closed enumeration of
// device sub-types; the family is recoverable from the id prefix.
type Device struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Family      DeviceFamily `json:"family"`
}

var deviceCatalog = []Device{
	{ID: "DPI_type1", Name: "DPI Type 1", Description: "Dry Powder Inhaler (Turbuhaler)", Family: FamilyDPI},
	{ID: "DPI_type2", Name: "DPI Type 2", Description: "Dry Powder Inhaler (Diskus)", Family: FamilyDPI},
	{ID: "DPI_type3", Name: "DPI Type 3", Description: "Dry Powder Inhaler (Ellipta)", Family: FamilyDPI},
	{ID: "pMDI_type1", Name: "pMDI Type 1", Description: "Pressurized Metered Dose Inhaler", Family: FamilyPMDI},
	{ID: "pMDI_type2", Name: "pMDI Type 2", Description: "Pressurized Metered Dose Inhaler (with spacer)", Family: FamilyPMDI},
	{ID: "SMI_type1", Name: "SMI Type 1", Description: "Soft Mist Inhaler (Respimat)", Family: FamilySMI},
}

// Devices returns the full device catalog in display order.
func Devices() []Device {
	out := make([]Device, len(deviceCatalog))
	copy(out, deviceCatalog)
	return out
}

// DeviceByID looks up a catalog entry. The second return is false for ids
// outside the closed enumeration.
func DeviceByID(id string) (Device, bool) {
	for _, d := range deviceCatalog {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
