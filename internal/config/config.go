package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/supplycover/internal/domain/commitments"
	"github.com/Spok95/supplycover/internal/engine"
	"github.com/Spok95/supplycover/internal/infra/db"
	"github.com/Spok95/supplycover/internal/infra/dw"
	"github.com/Spok95/supplycover/internal/infra/tracing"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		ExportPageSize  int           `mapstructure:"export_page_size"`
	} `mapstructure:"http"`

	// Postgres - база приложения: каталог, история контроля, empenho.
	Postgres struct {
		DSN  string
		Pool db.PoolConfig `mapstructure:"pool"`
	} `mapstructure:"postgres"`

	// DW - аналитическое хранилище (витрины расхода, остатков, регистраций).
	DW struct {
		DSN     string
		Pool    db.PoolConfig    `mapstructure:"pool"`
		Layout  dw.Layout        `mapstructure:"layout"`
		Breaker dw.BreakerConfig `mapstructure:"breaker"`
	} `mapstructure:"dw"`

	Commitments commitments.Columns `mapstructure:"commitments"`

	Cache struct {
		MaxSize       int                      `mapstructure:"max_size"`
		DefaultTTL    time.Duration            `mapstructure:"default_ttl"`
		SweepInterval time.Duration            `mapstructure:"sweep_interval"`
		TTLs          map[string]time.Duration `mapstructure:"ttls"`
	} `mapstructure:"cache"`

	Engine engine.Options `mapstructure:"engine"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Tracing tracing.Config `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "America/Sao_Paulo")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("http.export_page_size", 500)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.pool.max_conns", 10)
	v.SetDefault("dw.dsn", "")
	v.SetDefault("dw.pool.max_conns", 10)
	v.SetDefault("dw.pool.statement_timeout", 30*time.Second)
	v.SetDefault("dw.layout.schema", dw.SpecSchema)
	v.SetDefault("dw.breaker.enabled", true)
	v.SetDefault("dw.breaker.max_failures", 5)
	v.SetDefault("dw.breaker.open_timeout", 30*time.Second)
	v.SetDefault("dw.breaker.half_open_requests", 1)

	v.SetDefault("commitments.table", "public.empenho")
	v.SetDefault("commitments.material_column", "cd_material")
	v.SetDefault("commitments.number_column", "cd_empenho")

	v.SetDefault("cache.max_size", 2000)
	v.SetDefault("cache.default_ttl", 10*time.Minute)
	v.SetDefault("cache.sweep_interval", 2*time.Minute)

	v.SetDefault("engine.fetch_timeout", 10*time.Second)
	v.SetDefault("engine.dashboard_batch", 1000)
	v.SetDefault("engine.default_page_size", 50)
	v.SetDefault("engine.max_page_size", 500)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sampling_ratio", 0.1)
	v.SetDefault("tracing.service_name", "supplycover")
}

// Load читает .env (если есть), затем YAML по path (если задан) и переменные APP_* поверх.
// Ключ dw.layout.schema переопределяется APP_DW_LAYOUT_SCHEMA.
func Load(path string) (Config, error) {
	var c Config
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Location - часовой пояс для расчёта текущего месяца.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.App.Timezone); err == nil {
		return loc
	}
	return time.UTC
}
