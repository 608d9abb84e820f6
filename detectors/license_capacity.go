package detectors

import (
	"context"
	"fmt"

	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
)

// LicenseCapacityDetector flags SKUs consuming more units than purchased,
// which the billing side eventually enforces the hard way.
type LicenseCapacityDetector struct {
	directory domainDirectory.IDirectoryUsecase
}

func NewLicenseCapacityDetector(directory domainDirectory.IDirectoryUsecase) *LicenseCapacityDetector {
	return &LicenseCapacityDetector{directory: directory}
}

func (d *LicenseCapacityDetector) Category() string {
	return "license-capacity"
}

func (d *LicenseCapacityDetector) Detect(ctx context.Context) ([]domainDetection.Finding, error) {
	skus, err := d.directory.GetSubscribedSkus(ctx)
	if err != nil {
		return nil, err
	}

	findings := []domainDetection.Finding{}
	for _, sku := range skus {
		if sku.ConsumedUnits <= sku.PrepaidUnits.Enabled {
			continue
		}
		findings = append(findings, domainDetection.Finding{
			ID:       "license-capacity/" + sku.SkuID,
			Kind:     "sku_overassigned",
			Severity: domainDetection.SeverityHigh,
			Title:    fmt.Sprintf("SKU %s is over capacity", sku.SkuPartNumber),
			Description: fmt.Sprintf("SKU %s has %d units consumed but only %d purchased.",
				sku.SkuPartNumber, sku.ConsumedUnits, sku.PrepaidUnits.Enabled),
			AffectedResources: []domainDetection.AffectedResource{{
				ID:      sku.SkuID,
				Name:    sku.SkuPartNumber,
				Details: fmt.Sprintf("consumed %d / prepaid %d", sku.ConsumedUnits, sku.PrepaidUnits.Enabled),
			}},
			RemediationHint: "Purchase additional units or unassign the license from accounts that do not need it.",
			Automatable:     false,
		})
	}
	return findings, nil
}
