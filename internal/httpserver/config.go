package httpserver

import (
	"github.com/universal-brc20/indexer/pkg/middleware/requestcontext"
	"github.com/universal-brc20/indexer/pkg/middleware/requestlogger"
)

type Config struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}
