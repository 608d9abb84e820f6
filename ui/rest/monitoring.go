package rest

import (
	"github.com/AzielCF/az-audit/pkg/scanmonitor"
	"github.com/AzielCF/az-audit/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Monitoring struct{}

func InitRestMonitoring(app fiber.Router) Monitoring {
	rest := Monitoring{}
	app.Get("/monitoring/scans", rest.GetScanStats)

	return rest
}

func (handler *Monitoring) GetScanStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Scan monitor stats retrieved",
		Results: scanmonitor.GetStats(),
	})
}
