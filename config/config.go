package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Stripe  StripeConfig  `mapstructure:"stripe"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Email   EmailConfig   `mapstructure:"email"`
	Plans   PlansConfig   `mapstructure:"plans"`
	Pricing PricingConfig `mapstructure:"pricing"`
}

type JWTConfig struct {
	SecretKey       string        `mapstructure:"secretKey"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
}

type OAuthConfig struct {
	SessionSecret      string `mapstructure:"sessionSecret"`
	GoogleClientKey    string `mapstructure:"googleClientKey"`
	GoogleClientSecret string `mapstructure:"googleClientSecret"`
	GoogleCallbackURL  string `mapstructure:"googleCallbackURL"`
}

type StripeConfig struct {
	SecretKey           string `mapstructure:"secretKey"`
	WebhookSecret       string `mapstructure:"webhookSecret"`
	PriceIDStarter      string `mapstructure:"priceIDStarter"`
	PriceIDPro          string `mapstructure:"priceIDPro"`
	FrontendURL         string `mapstructure:"frontendURL"`
	CheckoutSuccessPath string `mapstructure:"checkoutSuccessPath"`
	CheckoutCancelPath  string `mapstructure:"checkoutCancelPath"`
}

type GeminiConfig struct {
	Model string `mapstructure:"model"`
}

type EmailConfig struct {
	PostmarkServerToken string `mapstructure:"postmarkServerToken"`
	FromAddress         string `mapstructure:"fromAddress"`
}

// PlansConfig is the single authoritative source for every trial/quota/period
// constant. The plan calculator, the feature gate and the welcome email all
// read from here, so the numbers cannot drift apart between call sites.
type PlansConfig struct {
	TrialDaysNormal   int `mapstructure:"trialDaysNormal"`
	TrialDaysReferral int `mapstructure:"trialDaysReferral"`
	VideoQuotaTrial   int `mapstructure:"videoQuotaTrial"`
	VideoQuotaPro     int `mapstructure:"videoQuotaPro"`
	PaidPeriodDays    int `mapstructure:"paidPeriodDays"`
}

// PricingConfig holds the per-unit cost of a usage event, in the billing
// currency, used by the admin cost aggregation.
type PricingConfig struct {
	URL    float64 `mapstructure:"url"`
	Vision float64 `mapstructure:"vision"`
	Chat   float64 `mapstructure:"chat"`
	Video  float64 `mapstructure:"video"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("BRIEFLY")
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
