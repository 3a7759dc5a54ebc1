package main

import (
	"xinyuan_tech/booking-service/internal/biz"
)

// CronApp Cron 应用结构
type CronApp struct {
	reconcileUsecase *biz.ReconcileUsecase
}
