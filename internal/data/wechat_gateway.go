package data

import (
	"context"
	"crypto/x509"
	"fmt"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// wechatGateway 微信支付 APIv3 网关实现
type wechatGateway struct {
	conf      *conf.Wechat
	client    *core.Client
	nativeAPI *native.NativeApiService
	refundAPI *refunddomestic.RefundsApiService
	verifier  *verifiers.SHA256WithRSAVerifier
	log       *log.Helper
}

// NewWechatGateway 创建微信支付网关客户端
func NewWechatGateway(c *conf.Bootstrap, logger log.Logger) (biz.GatewayClient, error) {
	wc := c.Wechat

	privateKey, err := utils.LoadPrivateKeyWithPath(wc.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load merchant private key: %w", err)
	}

	ctx := context.Background()
	client, err := core.NewClient(ctx, option.WithWechatPayAutoAuthCipher(
		wc.MchID, wc.MchCertSerial, privateKey, wc.ApiV3Key))
	if err != nil {
		return nil, fmt.Errorf("init wechatpay client: %w", err)
	}

	platformCert, err := utils.LoadCertificateWithPath(wc.PlatformCertPath)
	if err != nil {
		return nil, fmt.Errorf("load platform certificate: %w", err)
	}
	verifier := verifiers.NewSHA256WithRSAVerifier(
		core.NewCertificateMapWithList([]*x509.Certificate{platformCert}))

	return &wechatGateway{
		conf:      wc,
		client:    client,
		nativeAPI: &native.NativeApiService{Client: client},
		refundAPI: &refunddomestic.RefundsApiService{Client: client},
		verifier:  verifier,
		log:       log.NewHelper(logger),
	}, nil
}

// CreateCharge 创建 Native 预支付交易, 返回二维码链接
func (g *wechatGateway) CreateCharge(ctx context.Context, description, orderNo string, amountTotal int64, payerRef string) (string, error) {
	resp, _, err := g.nativeAPI.Prepay(ctx, native.PrepayRequest{
		Appid:       core.String(g.conf.AppID),
		Mchid:       core.String(g.conf.MchID),
		Description: core.String(description),
		OutTradeNo:  core.String(orderNo),
		NotifyUrl:   core.String(g.conf.NotifyURL),
		Attach:      core.String(payerRef),
		Amount: &native.Amount{
			Total:    core.Int64(amountTotal),
			Currency: core.String("CNY"),
		},
	})
	if err != nil {
		g.log.Errorf("wechat prepay failed for order %s: %v", orderNo, err)
		return "", err
	}
	return derefString(resp.CodeUrl), nil
}

// QueryCharge 按商户订单号查询支付状态
func (g *wechatGateway) QueryCharge(ctx context.Context, orderNo string) (*biz.ChargeStatus, error) {
	txn, _, err := g.nativeAPI.QueryOrderByOutTradeNo(ctx, native.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(orderNo),
		Mchid:      core.String(g.conf.MchID),
	})
	if err != nil {
		g.log.Errorf("wechat order query failed for %s: %v", orderNo, err)
		return nil, err
	}

	status := &biz.ChargeStatus{
		TradeState:    derefString(txn.TradeState),
		TransactionID: derefString(txn.TransactionId),
		SuccessTime:   derefString(txn.SuccessTime),
	}
	if txn.Amount != nil && txn.Amount.Total != nil {
		status.AmountTotal = *txn.Amount.Total
	}
	return status, nil
}

// Refund 发起退款
func (g *wechatGateway) Refund(ctx context.Context, orderNo, refundNo string, refundAmount, totalAmount int64, reason string) (*biz.GatewayRefundResult, error) {
	resp, _, err := g.refundAPI.Create(ctx, refunddomestic.CreateRequest{
		OutTradeNo:  core.String(orderNo),
		OutRefundNo: core.String(refundNo),
		Reason:      core.String(reason),
		NotifyUrl:   core.String(g.conf.RefundNotifyURL),
		Amount: &refunddomestic.AmountReq{
			Refund:   core.Int64(refundAmount),
			Total:    core.Int64(totalAmount),
			Currency: core.String("CNY"),
		},
	})
	if err != nil {
		g.log.Errorf("wechat refund create failed for %s: %v", refundNo, err)
		return nil, err
	}
	return &biz.GatewayRefundResult{
		RefundID: derefString(resp.RefundId),
		Status:   refundStatusString(resp.Status),
	}, nil
}

// QueryRefund 按商户退款单号查询退款状态
func (g *wechatGateway) QueryRefund(ctx context.Context, refundNo string) (*biz.GatewayRefundResult, error) {
	resp, _, err := g.refundAPI.QueryByOutRefundNo(ctx, refunddomestic.QueryByOutRefundNoRequest{
		OutRefundNo: core.String(refundNo),
	})
	if err != nil {
		g.log.Errorf("wechat refund query failed for %s: %v", refundNo, err)
		return nil, err
	}
	return &biz.GatewayRefundResult{
		RefundID: derefString(resp.RefundId),
		Status:   refundStatusString(resp.Status),
	}, nil
}

// VerifySignature 用平台证书对回调原始报文验签
// 待验签串固定为 timestamp\nnonce\nbody\n
func (g *wechatGateway) VerifySignature(ctx context.Context, timestamp, nonce, rawBody, signature, certSerial string) error {
	message := fmt.Sprintf("%s\n%s\n%s\n", timestamp, nonce, rawBody)
	return g.verifier.Verify(ctx, certSerial, message, signature)
}

// DecryptNotification 用 APIv3 密钥解密回调密文资源
func (g *wechatGateway) DecryptNotification(ctx context.Context, ciphertext, associatedData, nonce string) ([]byte, error) {
	plaintext, err := utils.DecryptAES256GCM(g.conf.ApiV3Key, associatedData, nonce, ciphertext)
	if err != nil {
		return nil, err
	}
	return []byte(plaintext), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func refundStatusString(s *refunddomestic.Status) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
