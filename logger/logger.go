package logger

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/phachon/go-logger"

	"cachedns/common"
)

var Logger = go_logger.NewLogger()

func Init() error {
	switch common.Config.Log.LogLevelForConsole {
	case "debug":
		_ = Logger.Detach("console")
		_ = Logger.Attach("console", go_logger.LOGGER_LEVEL_DEBUG, &go_logger.ConsoleConfig{})
	case "info":
		_ = Logger.Detach("console")
		_ = Logger.Attach("console", go_logger.LOGGER_LEVEL_INFO, &go_logger.ConsoleConfig{})
	case "warning":
		_ = Logger.Detach("console")
		_ = Logger.Attach("console", go_logger.LOGGER_LEVEL_WARNING, &go_logger.ConsoleConfig{})
	case "error":
		_ = Logger.Detach("console")
		_ = Logger.Attach("console", go_logger.LOGGER_LEVEL_ERROR, &go_logger.ConsoleConfig{})
	case "none":
		_ = Logger.Detach("console")
	default:
		Error("Set Log Level for Console", "unknown log level", common.Config.Log.LogLevelForConsole)
	}

	if common.Config.Log.LogFilePath != "" {
		logFileConfig := &go_logger.FileConfig{
			Filename:  common.Config.Log.LogFilePath,
			MaxSize:   int64(common.Config.Log.LogFileMaxSizeKB),
			DateSlice: "d",
		}
		switch common.Config.Log.LogLevelForFile {
		case "debug":
			_ = Logger.Attach("file", go_logger.LOGGER_LEVEL_DEBUG, logFileConfig)
		case "info":
			_ = Logger.Attach("file", go_logger.LOGGER_LEVEL_INFO, logFileConfig)
		case "warning":
			_ = Logger.Attach("file", go_logger.LOGGER_LEVEL_WARNING, logFileConfig)
		case "error":
			_ = Logger.Attach("file", go_logger.LOGGER_LEVEL_ERROR, logFileConfig)
		case "none":
		default:
			Error("Set Log Level for File", "unknown log level", common.Config.Log.LogLevelForFile)
		}
	}
	return nil
}

func Error(process string, objs ...interface{}) {
	Logger.Error(format(process, objs...))
}

func Warning(process string, objs ...interface{}) {
	Logger.Warning(format(process, objs...))
}

func Info(process string, objs ...interface{}) {
	Logger.Info(format(process, objs...))
}

func Debug(process string, objs ...interface{}) {
	Logger.Debug(format(process, objs...))
}

func format(process string, objs ...interface{}) string {
	msg := "[" + callerName(2) + "] {" + process + "} "
	for _, obj := range objs {
		msg += fmt.Sprint(obj) + " "
	}
	return strings.TrimSpace(msg)
}

func callerName(skip int) string {
	pc, _, _, _ := runtime.Caller(skip + 1)
	callerFullName := runtime.FuncForPC(pc).Name()
	callerNameFields := strings.Split(callerFullName, "/")
	return callerNameFields[len(callerNameFields)-1]
}
