package pkg

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger production 环境输出 JSON，其余输出带时间戳的文本
func NewLogger(level, env string) *logrus.Logger {
	log := logrus.New()
	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	return log
}
