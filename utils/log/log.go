package log

import (
	"os"

	"github.com/peek4c/peek4c/utils/dotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceName = "peek4c"
	logLevelEnvKey     = "PEEK4C_LOG_LEVEL"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	InitLogger(defaultServiceName)
}

// InitLogger rebuilds the global logger. Binaries call it again once the
// command being executed is known so the service field is accurate.
func InitLogger(serviceName string) {
	logger = logrus.New()

	// Structured output in production, human readable text otherwise.
	if dotenv.IsProdEnv() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetOutput(os.Stderr)

	if level, err := logrus.ParseLevel(os.Getenv(logLevelEnvKey)); err == nil {
		logger.SetLevel(level)
	}

	Log = logger.WithFields(
		logrus.Fields{"service": serviceName, "is_development": !dotenv.IsProdEnv()},
	)
}
