package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
	RequestSecond  int    `mapstructure:"request_timeout_seconds"`
}

func (a *AppConf) Addr() string { return fmt.Sprintf(":%d", a.Port) }

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type StorageConf struct {
	// Driver selects the repository backend: "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type S3Conf struct {
	PublicRead bool `mapstructure:"public_read"`
	PresignTTL int  `mapstructure:"presign_ttl_seconds"`
}

type UploadsConf struct {
	Dir          string `mapstructure:"dir"`
	MaxFiles     int    `mapstructure:"max_files"`
	MaxFileBytes int64  `mapstructure:"max_file_bytes"`
}

type JWTConf struct {
	Alg           string `mapstructure:"alg"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	HSSecret      string `mapstructure:"hs_secret"`
}

type WSConf struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	RateLimitPerSec      int   `mapstructure:"rate_limit_per_sec"`
	SendBuffer           int   `mapstructure:"send_buffer"`
}

type HTTPConf struct {
	RateLimitPerMin int `mapstructure:"rate_limit_per_min"`
}

type Config struct {
	App     AppConf     `mapstructure:"app"`
	Mongo   MongoConf   `mapstructure:"mongodb"`
	Storage StorageConf `mapstructure:"storage"`
	Redis   RedisConf   `mapstructure:"redis"`
	Kafka   KafkaConf   `mapstructure:"kafka"`
	AWS     AWSConf     `mapstructure:"aws"`
	S3      S3Conf      `mapstructure:"s3"`
	Uploads UploadsConf `mapstructure:"uploads"`
	JWT     JWTConf     `mapstructure:"jwt"`
	WS      WSConf      `mapstructure:"ws"`
	HTTP    HTTPConf    `mapstructure:"http"`
	Log     struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteDeadline   time.Duration
	PresignTTL      time.Duration
}

func (c *Config) Dev() bool { return c.App.Env == "development" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.request_timeout_seconds", 5)
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "studycircle")
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "studycircle")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "studycircle.events")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.presign_ttl_seconds", 600)
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_files", 10)
	v.SetDefault("uploads.max_file_bytes", 10<<20)
	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.rate_limit_per_sec", 20)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("http.rate_limit_per_min", 120)
	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path (a missing file is fine), then .env,
// then APP_ prefixed environment variables such as APP_MONGODB_URI.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	// viper does not split env lists on its own
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}

	c.ShutdownTimeout = time.Duration(c.App.ShutdownSecond) * time.Second
	c.RequestTimeout = time.Duration(c.App.RequestSecond) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.PongWait = c.PingInterval * 12 / 10
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PresignTTL = time.Duration(c.S3.PresignTTL) * time.Second

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongodb.uri and mongodb.database are required for the mongo driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch strings.ToUpper(c.JWT.Alg) {
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path missing")
		}
	case "HS256":
		if c.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret missing")
		}
	default:
		return fmt.Errorf("unsupported jwt.alg %q", c.JWT.Alg)
	}
	if c.Uploads.MaxFiles <= 0 {
		return errors.New("uploads.max_files must be positive")
	}
	if c.WS.PingIntervalSeconds <= 0 || c.WS.WriteDeadlineSeconds <= 0 {
		return errors.New("ws intervals must be positive")
	}
	return nil
}
