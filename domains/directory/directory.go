package directory

import (
	"context"
	"time"
)

// AssignedLicense mirrors the license assignment shape of the remote API.
type AssignedLicense struct {
	SkuID string `json:"skuId"`
}

type User struct {
	ID                string            `json:"id"`
	UserPrincipalName string            `json:"userPrincipalName"`
	DisplayName       string            `json:"displayName"`
	AccountEnabled    bool              `json:"accountEnabled"`
	LastSignIn        *time.Time        `json:"lastSignIn,omitempty"`
	AssignedLicenses  []AssignedLicense `json:"assignedLicenses"`
	IsAdmin           bool              `json:"isAdmin"`
	MFARegistered     bool              `json:"mfaRegistered"`
}

type PrepaidUnits struct {
	Enabled   int `json:"enabled"`
	Suspended int `json:"suspended"`
	Warning   int `json:"warning"`
}

type SubscribedSku struct {
	SkuID         string       `json:"skuId"`
	SkuPartNumber string       `json:"skuPartNumber"`
	ConsumedUnits int          `json:"consumedUnits"`
	PrepaidUnits  PrepaidUnits `json:"prepaidUnits"`
}

type Organization struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	TenantType      string `json:"tenantType"`
	SecurityDefault bool   `json:"securityDefaultsEnabled"`
}

// IDirectoryUsecase is the data-access layer the detectors read from. Every
// call is served from the persistent cache; the remote API is only hit on a
// miss or through background refresh.
type IDirectoryUsecase interface {
	GetUsers(ctx context.Context) ([]User, error)
	GetSubscribedSkus(ctx context.Context) ([]SubscribedSku, error)
	GetOrganization(ctx context.Context) (Organization, error)
}
