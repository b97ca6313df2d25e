package badger

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Open 打开嵌入式存储，badger 自身日志只保留 warning 以上
func Open(path string, log *logrus.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(log.WithField("component", "badger")).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(opts)
}
