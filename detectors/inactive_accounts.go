package detectors

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-audit/config"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
)

// InactiveAccountsDetector flags enabled accounts without a recent sign-in.
// Dormant admin accounts are reported separately with a higher severity.
type InactiveAccountsDetector struct {
	directory    domainDirectory.IDirectoryUsecase
	inactiveDays int // 0 = use the configured threshold
}

func NewInactiveAccountsDetector(directory domainDirectory.IDirectoryUsecase) *InactiveAccountsDetector {
	return &InactiveAccountsDetector{directory: directory}
}

// cutoffDays is read per run so settings updates apply without a restart.
func (d *InactiveAccountsDetector) cutoffDays() int {
	if d.inactiveDays > 0 {
		return d.inactiveDays
	}
	return config.DetectionInactiveDays
}

func (d *InactiveAccountsDetector) Category() string {
	return "inactive-accounts"
}

func (d *InactiveAccountsDetector) Detect(ctx context.Context) ([]domainDetection.Finding, error) {
	users, err := d.directory.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	days := d.cutoffDays()
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var admins, members []domainDetection.AffectedResource
	for _, u := range users {
		if !u.AccountEnabled {
			continue
		}
		if u.LastSignIn != nil && u.LastSignIn.After(cutoff) {
			continue
		}

		details := "never signed in"
		if u.LastSignIn != nil {
			details = fmt.Sprintf("last sign-in %s", u.LastSignIn.Format("2006-01-02"))
		}
		resource := domainDetection.AffectedResource{
			ID:      u.ID,
			Name:    u.UserPrincipalName,
			Details: details,
		}
		if u.IsAdmin {
			admins = append(admins, resource)
		} else {
			members = append(members, resource)
		}
	}

	findings := []domainDetection.Finding{}
	if len(admins) > 0 {
		findings = append(findings, domainDetection.Finding{
			ID:                "inactive-accounts/admins",
			Kind:              "inactive_admin_account",
			Severity:          domainDetection.SeverityHigh,
			Title:             "Dormant admin accounts",
			Description:       fmt.Sprintf("%d admin account(s) have not signed in for %d days. Dormant privileged accounts are a prime takeover target.", len(admins), days),
			AffectedResources: admins,
			RemediationHint:   "Disable dormant admin accounts or strip their privileged roles.",
			Automatable:       false,
		})
	}
	if len(members) > 0 {
		findings = append(findings, domainDetection.Finding{
			ID:                "inactive-accounts/members",
			Kind:              "inactive_member_account",
			Severity:          domainDetection.SeverityLow,
			Title:             "Inactive member accounts",
			Description:       fmt.Sprintf("%d account(s) have not signed in for %d days.", len(members), days),
			AffectedResources: members,
			RemediationHint:   "Review whether these accounts are still needed and disable the ones that are not.",
			Automatable:       true,
		})
	}
	return findings, nil
}
