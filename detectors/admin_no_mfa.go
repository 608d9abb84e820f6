package detectors

import (
	"context"
	"fmt"

	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
)

// AdminNoMFADetector flags admin accounts without MFA registration.
type AdminNoMFADetector struct {
	directory domainDirectory.IDirectoryUsecase
}

func NewAdminNoMFADetector(directory domainDirectory.IDirectoryUsecase) *AdminNoMFADetector {
	return &AdminNoMFADetector{directory: directory}
}

func (d *AdminNoMFADetector) Category() string {
	return "admin-mfa"
}

func (d *AdminNoMFADetector) Detect(ctx context.Context) ([]domainDetection.Finding, error) {
	users, err := d.directory.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	var affected []domainDetection.AffectedResource
	for _, u := range users {
		if !u.AccountEnabled || !u.IsAdmin || u.MFARegistered {
			continue
		}
		affected = append(affected, domainDetection.AffectedResource{
			ID:   u.ID,
			Name: u.UserPrincipalName,
		})
	}

	if len(affected) == 0 {
		return []domainDetection.Finding{}, nil
	}

	return []domainDetection.Finding{{
		ID:                "admin-mfa/unregistered",
		Kind:              "admin_without_mfa",
		Severity:          domainDetection.SeverityCritical,
		Title:             "Admin accounts without MFA",
		Description:       fmt.Sprintf("%d enabled admin account(s) have no MFA method registered.", len(affected)),
		AffectedResources: affected,
		RemediationHint:   "Require MFA registration for all privileged accounts, for example through a conditional access policy.",
		Automatable:       false,
	}}, nil
}
