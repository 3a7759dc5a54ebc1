package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/booking-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

// newLogger 创建 cron 进程的 logger
func newLogger() log.Logger {
	return log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "booking-cron",
	)
}

func main() {
	flag.Parse()

	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}
	if err := bc.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 待支付订单对账 - 每 5 分钟执行
	_, err = cronScheduler.AddFunc("0 */5 * * * *", func() {
		stdlog.Println("[CRON] Starting pending order sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		settled, err := app.reconcileUsecase.SweepPendingOrders(ctx)
		if err != nil {
			stdlog.Printf("[CRON] Error sweeping pending orders: %v", err)
		} else {
			stdlog.Printf("[CRON] Pending order sweep finished, settled %d orders", settled)
		}
	})
	if err != nil {
		stdlog.Printf("Failed to add pending order sweep job: %v", err)
	}

	// 2. 处理中退款对账 - 每 5 分钟执行, 与订单对账错开半分钟
	_, err = cronScheduler.AddFunc("30 */5 * * * *", func() {
		stdlog.Println("[CRON] Starting processing refund sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		settled, err := app.reconcileUsecase.SweepProcessingRefunds(ctx)
		if err != nil {
			stdlog.Printf("[CRON] Error sweeping processing refunds: %v", err)
		} else {
			stdlog.Printf("[CRON] Processing refund sweep finished, settled %d refunds", settled)
		}
	})
	if err != nil {
		stdlog.Printf("Failed to add processing refund sweep job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	stdlog.Println("========================================")
	stdlog.Println("Cron jobs started successfully")
	stdlog.Println("Scheduled jobs:")
	stdlog.Println("  - Pending order sweep:     Every 5 minutes")
	stdlog.Println("  - Processing refund sweep: Every 5 minutes (offset 30s)")
	stdlog.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stdlog.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		stdlog.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		stdlog.Println("Cron jobs forced to stop after timeout")
	}
}
