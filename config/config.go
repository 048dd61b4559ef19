package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileEnvName = "STOREFRONT_CONFIG_FILE"

type topics struct {
	Products string `mapstructure:"products"`
	Offers   string `mapstructure:"offers"`
}

// tls files are all set or all empty.
type tls struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

func (t tls) Enabled() bool {
	return t.CA != "" || t.Cert != "" || t.Key != ""
}

type broker struct {
	SeedBrokers        []string `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string `mapstructure:"schema_registry_urls"`
	Topics             topics   `mapstructure:"topics"`
	TLS                tls      `mapstructure:"tls"`
}

type images struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxSize   int64  `mapstructure:"max_size"`
	MaxWidth  int    `mapstructure:"max_width"`
	MaxHeight int    `mapstructure:"max_height"`
	Quality   int    `mapstructure:"quality"`
}

type admin struct {
	Email        string        `mapstructure:"email"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type Config struct {
	LogLevel       slog.Level `mapstructure:"log_level"`
	HTTPServerAddr string     `mapstructure:"http_server_addr"`
	SQLDB          string     `mapstructure:"sql_db"`
	Broker         broker     `mapstructure:"broker"`
	Images         images     `mapstructure:"images"`
	Admin          admin      `mapstructure:"admin"`
}

// Load reads the file named by $STOREFRONT_CONFIG_FILE or --config and
// exits the process when it is unusable.
func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("broker.topics.products", "storefront-products")
	v.SetDefault("broker.topics.offers", "storefront-offers")
	v.SetDefault("images.max_size", 5<<20)
	v.SetDefault("images.max_width", 1200)
	v.SetDefault("images.max_height", 1200)
	v.SetDefault("images.quality", 80)
	v.SetDefault("admin.token_ttl", "12h")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.UnmarshalExact(&cfg, hook); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	required := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s: required", name))
		}
	}

	required("sql_db", c.SQLDB)
	if len(c.Broker.SeedBrokers) == 0 {
		errs = append(errs, errors.New("broker.seed_brokers: required"))
	}
	if len(c.Broker.SchemaRegistryURLs) == 0 {
		errs = append(errs, errors.New("broker.schema_registry_urls: required"))
	}
	if c.Broker.TLS.Enabled() {
		required("broker.tls.ca", c.Broker.TLS.CA)
		required("broker.tls.cert", c.Broker.TLS.Cert)
		required("broker.tls.key", c.Broker.TLS.Key)
	}
	required("images.bucket", c.Images.Bucket)
	required("admin.email", c.Admin.Email)
	required("admin.password_hash", c.Admin.PasswordHash)
	required("admin.jwt_secret", c.Admin.JWTSecret)

	return errors.Join(errs...)
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cmdLine.ParseErrorsAllowlist.UnknownFlags = true
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

func (c Config) Print() {
	template := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	SQLDB=%q

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	TLS=%t
	Topics:
		Products=%q
		Offers=%q

	Images:
	Bucket=%q
	Region=%q
	Endpoint=%q
	AccessKey=%q
	BaseURL=%q
	MaxSize=%d
	MaxWidth=%d
	MaxHeight=%d
	Quality=%d

	Admin:
	Email=%q
	JWTSecret=%q
	TokenTTL=%s

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(template, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		mask(c.SQLDB),
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.TLS.Enabled(),
		c.Broker.Topics.Products,
		c.Broker.Topics.Offers,
		c.Images.Bucket,
		c.Images.Region,
		c.Images.Endpoint,
		mask(c.Images.AccessKey),
		c.Images.BaseURL,
		c.Images.MaxSize,
		c.Images.MaxWidth,
		c.Images.MaxHeight,
		c.Images.Quality,
		c.Admin.Email,
		mask(c.Admin.JWTSecret),
		c.Admin.TokenTTL,
	)
}
