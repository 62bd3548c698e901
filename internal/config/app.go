package config

import (
	"fmt"
	"time"
)

type AppConfig struct {
	HTTPAddr   string
	CORSOrigin string
	JWTSecret  string

	// Часовой пояс клиники: от него считаются «сегодня» и «прошло ли
	// начало слота».
	ClinicTimeZone *time.Location

	// Период фонового обхода: регенерация горизонта + истечение слотов.
	SweepInterval time.Duration
	// Минимальный интервал между ленивыми регенерациями по чтению.
	LazyRegenInterval time.Duration
}

func LoadAppConfig() (*AppConfig, error) {
	tzName := getEnv("CLINIC_TIMEZONE", "Asia/Bishkek")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load clinic timezone %q: %w", tzName, err)
	}

	cfg := &AppConfig{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		CORSOrigin:        getEnv("CORS_ORIGIN", "http://localhost:5173"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		ClinicTimeZone:    loc,
		SweepInterval:     time.Duration(getEnvInt("SWEEP_INTERVAL_MIN", 5)) * time.Minute,
		LazyRegenInterval: time.Duration(getEnvInt("LAZY_REGEN_INTERVAL_SEC", 60)) * time.Second,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}
