package rest

import (
	domainCache "github.com/AzielCF/az-audit/domains/cache"
	"github.com/AzielCF/az-audit/pkg/utils"
	"github.com/AzielCF/az-audit/validations"
	"github.com/gofiber/fiber/v2"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Post("/cache/clear", rest.Clear)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

// Clear invalidates one entry (?key=&type=), a whole type (?type=), or the
// entire cache (no query).
func (handler *Cache) Clear(c *fiber.Ctx) error {
	request := domainCache.InvalidateRequest{
		Key:  c.Query("key"),
		Type: c.Query("type"),
	}
	if err := validations.ValidateInvalidateCache(c.UserContext(), request); err != nil {
		panic(err)
	}

	err := handler.Service.Invalidate(c.UserContext(), request.Key, request.Type)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache cleared successfully",
	})
}
