package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server  *Server  `yaml:"server" json:"server"`
	Data    *Data    `yaml:"data" json:"data"`
	Wechat  *Wechat  `yaml:"wechat" json:"wechat"`
	Client  *Client  `yaml:"client" json:"client"`
	Booking *Booking `yaml:"booking" json:"booking"`
	Log     *Log     `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
		PoolSize     int32  `yaml:"pool_size" json:"pool_size"`
		MinIdleConns int32  `yaml:"min_idle_conns" json:"min_idle_conns"`
	} `yaml:"redis" json:"redis"`
}

// Wechat 微信支付 APIv3 商户配置
type Wechat struct {
	AppID            string `yaml:"app_id" json:"app_id"`
	MchID            string `yaml:"mch_id" json:"mch_id"`
	MchCertSerial    string `yaml:"mch_cert_serial" json:"mch_cert_serial"`
	ApiV3Key         string `yaml:"api_v3_key" json:"api_v3_key"`
	PrivateKeyPath   string `yaml:"private_key_path" json:"private_key_path"`
	PlatformCertPath string `yaml:"platform_cert_path" json:"platform_cert_path"`
	NotifyURL        string `yaml:"notify_url" json:"notify_url"`
	RefundNotifyURL  string `yaml:"refund_notify_url" json:"refund_notify_url"`
}

type Client struct {
	NotificationService *NotificationService `yaml:"notification_service" json:"notification_service"`
}

type NotificationService struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Booking 预订业务配置
type Booking struct {
	// PaymentExpireMinutes 待支付订单的支付窗口(分钟), 对账任务只扫描超出该窗口的 PENDING 订单
	PaymentExpireMinutes int `yaml:"payment_expire_minutes" json:"payment_expire_minutes"`
	// SweepBatchSize 对账任务单次扫描的订单数量
	SweepBatchSize int `yaml:"sweep_batch_size" json:"sweep_batch_size"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Data.Redis.Addr == "" {
		return fmt.Errorf("data.redis.addr is required")
	}
	if b.Wechat == nil {
		return fmt.Errorf("wechat configuration is required")
	}
	if b.Wechat.MchID == "" || b.Wechat.MchCertSerial == "" {
		return fmt.Errorf("wechat.mch_id and wechat.mch_cert_serial are required")
	}
	if b.Wechat.ApiV3Key == "" {
		return fmt.Errorf("wechat.api_v3_key is required")
	}
	if b.Wechat.PrivateKeyPath == "" || b.Wechat.PlatformCertPath == "" {
		return fmt.Errorf("wechat.private_key_path and wechat.platform_cert_path are required")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}
