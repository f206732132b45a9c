package test

import (
	"github.com/picopayments/picopayments-client/internal/logger"
)

func InitLogger() {
	logger.Init(logger.Options{Level: "debug"})
}
