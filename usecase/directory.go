package usecase

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/AzielCF/az-audit/config"
	domainCache "github.com/AzielCF/az-audit/domains/cache"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
	"github.com/AzielCF/az-audit/infrastructure/directory"
)

const (
	CacheTypeUsers        = "users"
	CacheTypeLicenses     = "licenses"
	CacheTypeOrganization = "organization"
)

// TypeTTLs returns the per-type cache TTLs for the directory data layer.
func TypeTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		CacheTypeUsers:        config.CacheUsersTTL,
		CacheTypeLicenses:     config.CacheLicensesTTL,
		CacheTypeOrganization: config.CacheOrganizationTTL,
	}
}

type directoryService struct {
	client *directory.Client
	cache  domainCache.ICacheUsecase
}

func NewDirectoryService(client *directory.Client, cache domainCache.ICacheUsecase) domainDirectory.IDirectoryUsecase {
	return &directoryService{client: client, cache: cache}
}

func (s *directoryService) GetUsers(ctx context.Context) ([]domainDirectory.User, error) {
	query := url.Values{}
	query.Set("$top", strconv.Itoa(config.DirectoryPageSize))

	payload, err := s.cache.GetOrFetch(ctx, "users:"+query.Encode(), CacheTypeUsers, func(ctx context.Context) (json.RawMessage, error) {
		items, err := s.client.GetList(ctx, "/users", query)
		if err != nil {
			return nil, err
		}
		return marshalItems(items)
	})
	if err != nil {
		return nil, err
	}

	var users []domainDirectory.User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *directoryService) GetSubscribedSkus(ctx context.Context) ([]domainDirectory.SubscribedSku, error) {
	payload, err := s.cache.GetOrFetch(ctx, "subscribedSkus", CacheTypeLicenses, func(ctx context.Context) (json.RawMessage, error) {
		items, err := s.client.GetList(ctx, "/subscribedSkus", nil)
		if err != nil {
			return nil, err
		}
		return marshalItems(items)
	})
	if err != nil {
		return nil, err
	}

	var skus []domainDirectory.SubscribedSku
	if err := json.Unmarshal(payload, &skus); err != nil {
		return nil, err
	}
	return skus, nil
}

func (s *directoryService) GetOrganization(ctx context.Context) (domainDirectory.Organization, error) {
	payload, err := s.cache.GetOrFetch(ctx, "organization", CacheTypeOrganization, func(ctx context.Context) (json.RawMessage, error) {
		items, err := s.client.GetList(ctx, "/organization", nil)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return json.RawMessage(items[0]), nil
		}
		return json.RawMessage("{}"), nil
	})
	if err != nil {
		return domainDirectory.Organization{}, err
	}

	var org domainDirectory.Organization
	if err := json.Unmarshal(payload, &org); err != nil {
		return domainDirectory.Organization{}, err
	}
	return org, nil
}

func marshalItems(items []json.RawMessage) (json.RawMessage, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(items)
}
