package vna

import "fmt"

// Diagnostics describes how well the detected model is covered by the
// profile. It replaces printing warnings at connect time.
type Diagnostics struct {
	ID          string   `json:"id"`
	Model       string   `json:"model"`
	Profile     string   `json:"profile"`
	Tested      bool     `json:"tested"`
	NPorts      int      `json:"nports"`
	Unsupported []string `json:"unsupported,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

func (i *Instrument) Diagnostics() Diagnostics {
	d := i.diag
	d.Unsupported = append([]string(nil), i.diag.Unsupported...)
	d.Warnings = append([]string(nil), i.diag.Warnings...)
	return d
}

func (i *Instrument) diagnose() Diagnostics {
	info, tested := i.profile.Model(i.model)
	d := Diagnostics{
		ID:          i.id,
		Model:       i.model,
		Profile:     i.profile.ID(),
		Tested:      tested,
		NPorts:      info.NPorts,
		Unsupported: append([]string(nil), info.Unsupported...),
	}
	if !tested {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"model %q has not been tested with profile %s; all features are enabled but older firmware may lack some commands",
			i.model, i.profile.ID()))
	}
	return d
}
