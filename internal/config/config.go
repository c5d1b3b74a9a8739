package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name       string `mapstructure:"name"`
	Env        string `mapstructure:"env"`
	InstanceID string `mapstructure:"instanceId"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         AuthConfig    `mapstructure:"auth"`
}

// AuthConfig 管理接口认证。APIKeys 与 JWTSecret 任一命中即放行
type AuthConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	APIKeys   []string `mapstructure:"apiKeys"`
	JWTSecret string   `mapstructure:"jwtSecret"`
}

// TLSConfig 传输层加密，证书与私钥均为 PEM 文件
type TLSConfig struct {
	Enable   bool   `mapstructure:"enable"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// TCPConfig TCP 网关配置
type TCPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	MaxConnections  int           `mapstructure:"maxConnections"`
	AcquireTimeout  time.Duration `mapstructure:"acquireTimeout"`
	ConnectionRate  int           `mapstructure:"connectionRate"`
	ConnectionBurst int           `mapstructure:"connectionBurst"`
	MaxBufferSize   int           `mapstructure:"maxBufferSize"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// OptionEntry 协议布尔开关。键中含点号（如 protocol.alternative.<设备ID>），
// 用列表而不是嵌套 map 表达，避免被 viper 拆成多级。
type OptionEntry struct {
	Key   string `mapstructure:"key"`
	Value bool   `mapstructure:"value"`
}

// H02Config 协议层配置
type H02Config struct {
	// MessageLength 二进制帧长，0 为自动识别
	MessageLength int           `mapstructure:"messageLength"`
	Acknowledge   bool          `mapstructure:"acknowledge"`
	Options       []OptionEntry `mapstructure:"options"`
}

// OptionMap 转为 key -> value
func (c H02Config) OptionMap() map[string]bool {
	out := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		if o.Key != "" {
			out[o.Key] = o.Value
		}
	}
	return out
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// RedisConfig Redis 连接配置，用于设备身份查询
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// IdentityKey 原始标识 -> 设备ID 的 hash 键
	IdentityKey string `mapstructure:"identityKey"`
	// RejectUnknown 为 true 时未登记的设备被拒绝，否则原样透传
	RejectUnknown bool `mapstructure:"rejectUnknown"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// NATSConfig 事件总线配置
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Name    string `mapstructure:"name"`
	// SubjectPrefix 上行事件主题前缀，完整主题为 <prefix>.<kind>
	SubjectPrefix string `mapstructure:"subjectPrefix"`
	// DownlinkSubject 下行指令订阅主题，支持通配符
	DownlinkSubject string        `mapstructure:"downlinkSubject"`
	ReconnectWait   time.Duration `mapstructure:"reconnectWait"`
	MaxReconnects   int           `mapstructure:"maxReconnects"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

// WebhookConfig 事件推送到第三方 HTTP 端点，HMAC-SHA256 签名
type WebhookConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"apiKey"`
	Secret    string        `mapstructure:"secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queueSize"`
	// Kinds 为空时推送全部事件类型
	Kinds []string `mapstructure:"kinds"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	TCP     TCPConfig     `mapstructure:"tcp"`
	H02     H02Config     `mapstructure:"h02"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 H02_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("H02_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 H02_，并将点号替换为下划线
	v.SetEnvPrefix("H02")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查相互依赖的配置项
func (c *Config) Validate() error {
	switch c.H02.MessageLength {
	case 0, 32, 45:
	default:
		return fmt.Errorf("h02.messageLength must be 0, 32 or 45, got %d", c.H02.MessageLength)
	}
	if c.TCP.TLS.Enable && (c.TCP.TLS.CertFile == "" || c.TCP.TLS.KeyFile == "") {
		return errors.New("tcp.tls.enable requires certFile and keyFile")
	}
	if c.HTTP.Auth.Enabled && len(c.HTTP.Auth.APIKeys) == 0 && c.HTTP.Auth.JWTSecret == "" {
		return errors.New("http.auth.enabled requires apiKeys or jwtSecret")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.enabled requires nats.url")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return errors.New("webhook.enabled requires webhook.url")
	}
	return nil
}

// InstanceID 网关实例标识：配置 > 环境变量 SERVER_ID > 主机名-短uuid
func (c *Config) InstanceID() string {
	if c.App.InstanceID != "" {
		return c.App.InstanceID
	}
	if id := os.Getenv("SERVER_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = c.App.Name
	}
	return host + "-" + uuid.New().String()[:8]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "h02-server")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.auth.enabled", false)

	v.SetDefault("tcp.addr", ":5020")
	v.SetDefault("tcp.readTimeout", "5m")
	v.SetDefault("tcp.writeTimeout", "10s")
	v.SetDefault("tcp.maxConnections", 5000)
	v.SetDefault("tcp.acquireTimeout", "1s")
	v.SetDefault("tcp.connectionRate", 100)
	v.SetDefault("tcp.connectionBurst", 200)
	v.SetDefault("tcp.maxBufferSize", 4096)
	v.SetDefault("tcp.tls.enable", false)

	v.SetDefault("h02.messageLength", 0)
	v.SetDefault("h02.acknowledge", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/h02-server.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.identityKey", "h02:identity")
	v.SetDefault("redis.rejectUnknown", false)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "h02-server")
	v.SetDefault("nats.subjectPrefix", "h02.uplink")
	v.SetDefault("nats.downlinkSubject", "h02.downlink.>")
	v.SetDefault("nats.reconnectWait", "2s")
	v.SetDefault("nats.maxReconnects", -1)
	v.SetDefault("nats.breaker.threshold", 5)
	v.SetDefault("nats.breaker.timeout", "30s")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.retries", 3)
	v.SetDefault("webhook.workers", 2)
	v.SetDefault("webhook.queueSize", 1024)
}
