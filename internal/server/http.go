package server

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"strconv"
	"time"

	"xinyuan_tech/booking-service/internal/auth"
	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/conf"
	"xinyuan_tech/booking-service/internal/constants"
	"xinyuan_tech/booking-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, booking *service.BookingService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Filter(identityFilter),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, booking)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{
			"status":  "ok",
			"service": "booking-service",
		})
	})

	return srv
}

// identityFilter 解析上游网关注入的用户身份头
// 认证由网关完成, 本服务只消费 X-User-Id / X-User-Role
func identityFilter(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if uidHeader := r.Header.Get("X-User-Id"); uidHeader != "" {
			if uid, err := strconv.ParseUint(uidHeader, 10, 64); err == nil {
				role := auth.Role(r.Header.Get("X-User-Role"))
				if role != auth.RoleAdmin {
					role = auth.RoleUser
				}
				r = r.WithContext(auth.WithUser(r.Context(), uid, role))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// registerRoutes 注册业务路由
func registerRoutes(srv *http.Server, booking *service.BookingService) {
	v1 := srv.Route("/v1")

	v1.POST("/orders", func(ctx http.Context) error {
		var req service.CreateOrderRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := booking.CreateOrder(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.GET("/orders", func(ctx http.Context) error {
		page, _ := strconv.Atoi(ctx.Query().Get("page"))
		pageSize, _ := strconv.Atoi(ctx.Query().Get("page_size"))
		reply, err := booking.ListOrders(ctx, page, pageSize)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.GET("/orders/{order_id}", func(ctx http.Context) error {
		orderID, err := pathUint(ctx, "order_id")
		if err != nil {
			return err
		}
		reply, err := booking.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.GET("/orders/{order_id}/payment-status", func(ctx http.Context) error {
		orderID, err := pathUint(ctx, "order_id")
		if err != nil {
			return err
		}
		reply, err := booking.CheckPaymentStatus(ctx, orderID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.POST("/refunds", func(ctx http.Context) error {
		var req service.RequestRefundRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := booking.RequestRefund(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.GET("/refunds/{refund_no}", func(ctx http.Context) error {
		reply, err := booking.GetRefund(ctx, ctx.Vars().Get("refund_no"))
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.POST("/refunds/{refund_no}/approve", func(ctx http.Context) error {
		var req service.ReviewRefundRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := booking.ApproveRefund(ctx, ctx.Vars().Get("refund_no"), &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.POST("/refunds/{refund_no}/reject", func(ctx http.Context) error {
		var req service.ReviewRefundRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := booking.RejectRefund(ctx, ctx.Vars().Get("refund_no"), &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	v1.POST("/refunds/{refund_no}/retry", func(ctx http.Context) error {
		reply, err := booking.RetryRefund(ctx, ctx.Vars().Get("refund_no"))
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	// 微信回调: 应答协议固定为 {"code": "SUCCESS"} / {"code": "FAIL"},
	// 处理失败时返回 5xx 促使微信按退避策略重试
	v1.POST("/notify/wechat/payment", func(ctx http.Context) error {
		return handleNotify(ctx, booking.HandlePaymentNotification)
	})

	v1.POST("/notify/wechat/refund", func(ctx http.Context) error {
		return handleNotify(ctx, booking.HandleRefundNotification)
	})
}

func pathUint(ctx http.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(ctx.Vars().Get(name), 10, 64)
	if err != nil {
		return 0, kerrors.BadRequest("INVALID_PARAM", name+" must be a positive integer")
	}
	return v, nil
}

// handleNotify 读取原始报文与验签头, 按微信应答协议回写
func handleNotify(ctx http.Context, handle func(ctx context.Context, req *biz.NotificationRequest) error) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.Result(stdhttp.StatusBadRequest, map[string]string{
			"code":    constants.NotifyCodeFail,
			"message": "failed to read request body",
		})
	}

	header := ctx.Request().Header
	req := &biz.NotificationRequest{
		Timestamp:  header.Get("Wechatpay-Timestamp"),
		Nonce:      header.Get("Wechatpay-Nonce"),
		Signature:  header.Get("Wechatpay-Signature"),
		CertSerial: header.Get("Wechatpay-Serial"),
		RawBody:    body,
	}

	if err := handle(ctx, req); err != nil {
		se := kerrors.FromError(err)
		status := stdhttp.StatusInternalServerError
		if se != nil && se.Code >= 400 && se.Code < 500 {
			status = int(se.Code)
		}
		return ctx.Result(status, map[string]string{
			"code":    constants.NotifyCodeFail,
			"message": se.Reason,
		})
	}
	return ctx.Result(200, map[string]string{"code": constants.NotifyCodeSuccess})
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
		if retry, ok := se.Metadata["retry_after"]; ok {
			w.Header().Set("Retry-After", retry)
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
