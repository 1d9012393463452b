package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	RedisAddr     string `env:"REDIS_ADDR,required=true"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	AdminUsername string `env:"ADMIN_USERNAME,required=true"`
	JWTSecret     string `env:"JWT_SECRET,required=true"`

	EventChannel     string        `env:"EVENT_CHANNEL,default=chat:events"`
	HistoryLimit     int64         `env:"HISTORY_LIMIT,default=100"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=1000"`
	PresenceStale    time.Duration `env:"PRESENCE_STALENESS,default=5m"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=1m"`

	BurstShortWindow   time.Duration `env:"BURST_SHORT_WINDOW,default=10s"`
	BurstShortLimit    int64         `env:"BURST_SHORT_LIMIT,default=5"`
	BurstLongWindow    time.Duration `env:"BURST_LONG_WINDOW,default=1m"`
	BurstLongLimit     int64         `env:"BURST_LONG_LIMIT,default=30"`
	MinMessageInterval time.Duration `env:"MIN_MESSAGE_INTERVAL,default=1s"`

	AnonymousQuota       int64         `env:"ANONYMOUS_QUOTA,default=10"`
	AnonymousQuotaWindow time.Duration `env:"ANONYMOUS_QUOTA_WINDOW,default=24h"`
	AuthQuota            int64         `env:"AUTH_QUOTA,default=50"`
	AuthQuotaWindow      time.Duration `env:"AUTH_QUOTA_WINDOW,default=24h"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// WordList splits the configured censored words, dropping empties.
func (c Config) WordList() []string {
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
