package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string

		AppName         string
		SecretKey       string
		FrontendBaseURL string
		FromEmail       string
		SendgridAPIKey  string
		RollbarToken    string

		JWTExpirationDelta         time.Duration
		OTPExpirationDelta         time.Duration
		ResetTicketExpirationDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Upload   UploadConfig
	}

	ServerConfig struct {
		Host    string
		Address string
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		DisableTLS bool
	}

	UploadConfig struct {
		Endpoint           string
		AccessKey          string
		SecretKey          string
		Bucket             string
		PublicBaseURL      string
		UseSSL             bool
		URLExpirationDelta time.Duration
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.FromEmail}
}

func (dc DatabaseConfig) HostPort() string {
	return dc.Host + ":" + dc.Port
}

// NewConfig loads the app configuration from the environment.
// An optional `config/.env.<env>` file is loaded first if it exists;
// actual environment variables (prefixed with the current ENV) take precedence.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "wq3(29o!mkf+$v8_t0u#x5jdz&r)hce7^ay%4bn1gp6s*l=qi2")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("fromEmail", "noreply@localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("jwtExpirationDelta", time.Hour)
	v.SetDefault("otpExpirationDelta", 10*time.Minute)
	v.SetDefault("resetTicketExpirationDelta", 15*time.Minute)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbUser", "darasa")
	v.SetDefault("dbName", "darasa")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("uploadEndpoint", "localhost:9000")
	v.SetDefault("uploadBucket", "darasa-media")
	v.SetDefault("uploadURLExpirationDelta", 15*time.Minute)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:                      v.GetBool("debug"),
		TestMode:                   testMode,
		Env:                        env,
		Build:                      v.GetString("build"),
		AppName:                    v.GetString("appName"),
		SecretKey:                  v.GetString("secretKey"),
		FrontendBaseURL:            v.GetString("frontendBaseURL"),
		FromEmail:                  v.GetString("fromEmail"),
		SendgridAPIKey:             v.GetString("sendgridAPIKey"),
		RollbarToken:               v.GetString("rollbarToken"),
		JWTExpirationDelta:         v.GetDuration("jwtExpirationDelta"),
		OTPExpirationDelta:         v.GetDuration("otpExpirationDelta"),
		ResetTicketExpirationDelta: v.GetDuration("resetTicketExpirationDelta"),
		Server: ServerConfig{
			Host:    v.GetString("serverHost"),
			Address: v.GetString("serverAddress"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("dbEngine"),
			Host:       v.GetString("dbHost"),
			Port:       v.GetString("dbPort"),
			User:       v.GetString("dbUser"),
			Password:   v.GetString("dbPassword"),
			Name:       v.GetString("dbName"),
			DisableTLS: v.GetBool("dbDisableTLS"),
		},
		Upload: UploadConfig{
			Endpoint:           v.GetString("uploadEndpoint"),
			AccessKey:          v.GetString("uploadAccessKey"),
			SecretKey:          v.GetString("uploadSecretKey"),
			Bucket:             v.GetString("uploadBucket"),
			PublicBaseURL:      v.GetString("uploadPublicBaseURL"),
			UseSSL:             v.GetBool("uploadUseSSL"),
			URLExpirationDelta: v.GetDuration("uploadURLExpirationDelta"),
		},
	}
}
