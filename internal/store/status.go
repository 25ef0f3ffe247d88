package store

import "github.com/formype/lax-qlpm/internal/model"

// Fault categories operators can tick on the update form, in fixed
// display order. Critical categories take a machine out of service.
var (
	CriticalIssues = []string{"CPU", "Power Supply", "Monitor"}
	WarningIssues  = []string{"Keyboard", "Mouse", "Network"}
)

// DisplayIssues is the fixed rendering order for issue categories.
var DisplayIssues = append(append([]string{}, CriticalIssues...), WarningIssues...)

// IsCriticalIssue reports whether the category takes a machine to ERROR.
func IsCriticalIssue(issue string) bool {
	for _, c := range CriticalIssues {
		if c == issue {
			return true
		}
	}
	return false
}

// DeriveStatus computes the machine status implied by an update form:
// any critical issue means ERROR, any other issue or a bare note means
// MAINTENANCE, and an empty form clears the machine back to ONLINE.
func DeriveStatus(issues []string, note string) model.MachineStatus {
	for _, issue := range issues {
		if IsCriticalIssue(issue) {
			return model.StatusError
		}
	}
	if len(issues) > 0 {
		return model.StatusMaintenance
	}
	if note != "" {
		return model.StatusMaintenance
	}
	return model.StatusOnline
}
