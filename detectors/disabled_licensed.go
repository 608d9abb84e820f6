package detectors

import (
	"context"
	"fmt"

	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
)

// DisabledLicensedDetector flags disabled accounts that still hold license
// assignments. They consume paid seats without anyone being able to sign in.
type DisabledLicensedDetector struct {
	directory domainDirectory.IDirectoryUsecase
}

func NewDisabledLicensedDetector(directory domainDirectory.IDirectoryUsecase) *DisabledLicensedDetector {
	return &DisabledLicensedDetector{directory: directory}
}

func (d *DisabledLicensedDetector) Category() string {
	return "disabled-licensed"
}

func (d *DisabledLicensedDetector) Detect(ctx context.Context) ([]domainDetection.Finding, error) {
	users, err := d.directory.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	var affected []domainDetection.AffectedResource
	for _, u := range users {
		if u.AccountEnabled || len(u.AssignedLicenses) == 0 {
			continue
		}
		affected = append(affected, domainDetection.AffectedResource{
			ID:      u.ID,
			Name:    u.UserPrincipalName,
			Details: fmt.Sprintf("%d license(s) assigned", len(u.AssignedLicenses)),
		})
	}

	if len(affected) == 0 {
		return []domainDetection.Finding{}, nil
	}

	return []domainDetection.Finding{{
		ID:                "disabled-licensed/assigned",
		Kind:              "disabled_account_with_license",
		Severity:          domainDetection.SeverityMedium,
		Title:             "Disabled accounts still hold licenses",
		Description:       fmt.Sprintf("%d disabled account(s) still have licenses assigned and keep consuming paid seats.", len(affected)),
		AffectedResources: affected,
		RemediationHint:   "Remove the license assignments from disabled accounts or delete the accounts if no longer needed.",
		Automatable:       true,
	}}, nil
}
