package rest

import (
	"github.com/AzielCF/az-audit/config"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	pkgError "github.com/AzielCF/az-audit/pkg/error"
	"github.com/AzielCF/az-audit/pkg/utils"
	"github.com/AzielCF/az-audit/validations"
	"github.com/gofiber/fiber/v2"
)

type Detection struct {
	Service domainDetection.IDetectionUsecase
}

func InitRestDetection(app fiber.Router, service domainDetection.IDetectionUsecase) Detection {
	rest := Detection{Service: service}
	app.Post("/detections/run", rest.Run)
	app.Get("/detections", rest.GetAll)
	app.Get("/detections/summary", rest.GetSummary)
	app.Get("/detections/category/:category", rest.GetByCategory)
	app.Get("/detections/settings", rest.GetSettings)
	app.Post("/detections/settings", rest.UpdateSettings)

	return rest
}

func (handler *Detection) Run(c *fiber.Ctx) error {
	records, err := handler.Service.RunAll(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection run completed",
		Results: records,
	})
}

func (handler *Detection) GetAll(c *fiber.Ctx) error {
	forceRefresh := c.QueryBool("refresh", false)
	records, err := handler.Service.GetAll(c.UserContext(), forceRefresh)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection records retrieved",
		Results: records,
	})
}

func (handler *Detection) GetSummary(c *fiber.Ctx) error {
	summary, err := handler.Service.GetSummary(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection summary retrieved",
		Results: summary,
	})
}

func (handler *Detection) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection settings retrieved",
		Results: fiber.Map{
			"scan_interval_mins": config.DetectionScanIntervalMin,
			"inactive_days":      config.DetectionInactiveDays,
		},
	})
}

func (handler *Detection) UpdateSettings(c *fiber.Ctx) error {
	var request domainDetection.SettingsRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	if err := validations.ValidateUpdateSettings(c.UserContext(), request); err != nil {
		panic(err)
	}

	if request.ScanIntervalMins != nil {
		utils.PanicIfNeeded(config.SaveScanIntervalMins(*request.ScanIntervalMins))
	}
	if request.InactiveDays != nil {
		utils.PanicIfNeeded(config.SaveInactiveDays(*request.InactiveDays))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection settings updated",
		Results: fiber.Map{
			"scan_interval_mins": config.DetectionScanIntervalMin,
			"inactive_days":      config.DetectionInactiveDays,
		},
	})
}

func (handler *Detection) GetByCategory(c *fiber.Ctx) error {
	request := domainDetection.CategoryRequest{Category: c.Params("category")}
	if err := validations.ValidateGetByCategory(c.UserContext(), request); err != nil {
		panic(err)
	}

	known := false
	for _, category := range handler.Service.Categories() {
		if category == request.Category {
			known = true
			break
		}
	}
	if !known {
		panic(pkgError.NotFoundError("unknown detector category: " + request.Category))
	}

	records, err := handler.Service.GetByCategory(c.UserContext(), request.Category)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Detection records retrieved",
		Results: records,
	})
}
