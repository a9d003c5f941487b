package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token       string `envconfig:"BOT_TOKEN"`
		WebhookPath string `envconfig:"WEBHOOK_PATH" default:"/telegram/webhook"`
		PublicURL   string `envconfig:"PUBLIC_URL"`
	} `envconfig:""`

	CasinoURL  string `envconfig:"CASINO_URL" default:"https://8spin.com"`
	SupportURL string `envconfig:"SUPPORT_URL" default:"https://8spin.com"`

	Reminders struct {
		Enabled       bool          `envconfig:"REMINDERS_ENABLED" default:"true"`
		Delay         time.Duration `envconfig:"FOLLOWUP_DELAY" default:"10m"`
		SweepInterval time.Duration `envconfig:"FOLLOWUP_SWEEP_INTERVAL" default:"1m"`
		SweepBatch    int           `envconfig:"FOLLOWUP_SWEEP_BATCH" default:"100"`
		ImageURL      string        `envconfig:"FOLLOWUP_IMAGE" default:"https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ae261d7562f0fa01b91dc_Frame%202147224854.png"`
	} `envconfig:""`

	Broadcast struct {
		SendDelay   time.Duration `envconfig:"BROADCAST_SEND_DELAY" default:"120ms"`
		SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
		Timezone    string        `envconfig:"ALERT_TIMEZONE" default:"Europe/Rome"`
	} `envconfig:""`

	AdminSecret string `envconfig:"ADMIN_SECRET"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Queues struct {
		Broadcast string `envconfig:"BROADCAST_QUEUE_KEY" default:"broadcast_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
