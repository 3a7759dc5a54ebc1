package errors

import (
	"fmt"
	"strconv"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 基于 kratos errors 构造业务错误, 业务错误码放在 metadata 的 biz_code 中,
// HTTP 状态语义由 kratos 错误码承载。

func withBizCode(e *kerrors.Error, code int) *kerrors.Error {
	return e.WithMetadata(map[string]string{"biz_code": strconv.Itoa(code)})
}

// ErrProductNotFound 商品不存在
func ErrProductNotFound(productID uint64) *kerrors.Error {
	return withBizCode(kerrors.NotFound("PRODUCT_NOT_FOUND",
		fmt.Sprintf("product %d not found", productID)), ErrCodeProductNotFound)
}

// ErrProductUnpublished 商品未上架
func ErrProductUnpublished(productID uint64) *kerrors.Error {
	return withBizCode(kerrors.BadRequest("PRODUCT_UNPUBLISHED",
		fmt.Sprintf("product %d is not published", productID)), ErrCodeProductUnpublished)
}

// ErrStockInsufficient 库存不足
func ErrStockInsufficient(productID uint64) *kerrors.Error {
	return withBizCode(kerrors.Conflict("STOCK_INSUFFICIENT",
		fmt.Sprintf("insufficient stock for product %d", productID)), ErrCodeStockInsufficient)
}

// ErrAgeOutOfRange 年龄不符合商品限制
func ErrAgeOutOfRange(age, minAge, maxAge int) *kerrors.Error {
	return withBizCode(kerrors.BadRequest("AGE_OUT_OF_RANGE",
		fmt.Sprintf("participant age %d is outside the allowed range [%d, %d]", age, minAge, maxAge)), ErrCodeAgeOutOfRange)
}

// ErrOrderNotFound 订单不存在
func ErrOrderNotFound() *kerrors.Error {
	return withBizCode(kerrors.NotFound("ORDER_NOT_FOUND", "order not found"), ErrCodeOrderNotFound)
}

// ErrOrderNotOwner 无权访问他人订单
func ErrOrderNotOwner() *kerrors.Error {
	return withBizCode(kerrors.Forbidden("ORDER_NOT_OWNER", "you can only access your own orders"), ErrCodeOrderNotOwner)
}

// ErrInvalidTransition 状态流转非法
func ErrInvalidTransition(from, to string) *kerrors.Error {
	return withBizCode(kerrors.Conflict("INVALID_STATUS_TRANSITION",
		fmt.Sprintf("order status transition from %s to %s is not allowed", from, to)), ErrCodeInvalidTransition)
}

// ErrOrderCreateFailed 订单创建失败
func ErrOrderCreateFailed(err error) *kerrors.Error {
	return withBizCode(kerrors.InternalServer("ORDER_CREATE_FAILED",
		fmt.Sprintf("failed to create order: %v", err)), ErrCodeOrderCreateFailed)
}

// ErrPaymentDataIntegrity 支付成功数据不完整
func ErrPaymentDataIntegrity(detail string) *kerrors.Error {
	return withBizCode(kerrors.InternalServer("PAYMENT_DATA_INTEGRITY",
		fmt.Sprintf("malformed payment success payload: %s", detail)), ErrCodePaymentDataIntegrity)
}

// ErrPaymentAmountMismatch 支付金额与订单不一致
func ErrPaymentAmountMismatch(notified, expected int64) *kerrors.Error {
	return withBizCode(kerrors.InternalServer("PAYMENT_AMOUNT_MISMATCH",
		fmt.Sprintf("notified amount %d does not match order amount %d", notified, expected)), ErrCodePaymentAmountMismatch)
}

// ErrPaymentQueryRateLimited 查询限流
func ErrPaymentQueryRateLimited(retryAfterSeconds int) *kerrors.Error {
	e := kerrors.New(429, "PAYMENT_QUERY_RATE_LIMITED",
		"too many payment status queries, try again later")
	return e.WithMetadata(map[string]string{
		"biz_code":    strconv.Itoa(ErrCodePaymentQueryRateLimited),
		"retry_after": strconv.Itoa(retryAfterSeconds),
	})
}

// ErrGatewayUnavailable 支付网关不可用
func ErrGatewayUnavailable(err error) *kerrors.Error {
	return withBizCode(kerrors.ServiceUnavailable("GATEWAY_UNAVAILABLE",
		fmt.Sprintf("payment gateway unavailable: %v", err)), ErrCodeGatewayUnavailable)
}

// ErrNotifyVerifyFailed 回调验签或解密失败
func ErrNotifyVerifyFailed(detail string) *kerrors.Error {
	return withBizCode(kerrors.BadRequest("NOTIFY_VERIFY_FAILED",
		fmt.Sprintf("notification verification failed: %s", detail)), ErrCodeNotifyVerifyFailed)
}

// ErrRefundNotFound 退款单不存在
func ErrRefundNotFound() *kerrors.Error {
	return withBizCode(kerrors.NotFound("REFUND_NOT_FOUND", "refund record not found"), ErrCodeRefundNotFound)
}

// ErrRefundNotPending 退款单不处于待审批状态
func ErrRefundNotPending(status string) *kerrors.Error {
	return withBizCode(kerrors.Conflict("REFUND_NOT_PENDING",
		fmt.Sprintf("refund record is %s, only PENDING records can be approved or rejected", status)), ErrCodeRefundNotPending)
}

// ErrRefundReasonRequired 驳回理由不能为空
func ErrRefundReasonRequired() *kerrors.Error {
	return withBizCode(kerrors.BadRequest("REFUND_REASON_REQUIRED", "a non-blank reject reason is required"), ErrCodeRefundReasonRequired)
}

// ErrRefundNotFailed 退款单不处于失败状态
func ErrRefundNotFailed(status string) *kerrors.Error {
	return withBizCode(kerrors.Conflict("REFUND_NOT_FAILED",
		fmt.Sprintf("refund record is %s, only FAILED records can be retried", status)), ErrCodeRefundNotFailed)
}

// ErrRefundActiveExists 订单已存在进行中的退款单
func ErrRefundActiveExists(orderNo string) *kerrors.Error {
	return withBizCode(kerrors.Conflict("REFUND_ACTIVE_EXISTS",
		fmt.Sprintf("order %s already has an active refund record", orderNo)), ErrCodeRefundActiveExists)
}

// ErrRefundGatewayRefused 支付网关拒绝退款
func ErrRefundGatewayRefused(err error) *kerrors.Error {
	return withBizCode(kerrors.InternalServer("REFUND_GATEWAY_REFUSED",
		fmt.Sprintf("payment gateway refused the refund request: %v", err)), ErrCodeRefundGatewayRefused)
}
