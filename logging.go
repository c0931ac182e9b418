package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	coreLog  *logrus.Entry
	capiLog  *logrus.Entry
	mediaLog *logrus.Entry
	apiLog   *logrus.Entry
	logFile  *lumberjack.Logger
)

// dataTrace controls whether per-frame B3 data traffic is logged.
var dataTrace bool

func initLogging(cfg *ini.File) error {
	sec := cfg.Section("logging")

	consoleMin := toLogrusLevel(sec.Key("console_min_level").MustInt(0))
	fileMin := toLogrusLevel(sec.Key("file_min_level").MustInt(0))

	logFile = &lumberjack.Logger{
		Filename:   sec.Key("file").MustString("capictl.log"),
		MaxSize:    sec.Key("max_size_mb").MustInt(100),
		MaxBackups: sec.Key("max_backups").MustInt(1),
	}

	dataTrace = sec.Key("data_trace").MustBool(false)
	var capiFilter func(*logrus.Entry) bool
	if !dataTrace {
		// filter out per-frame DATA_B3 traces
		capiFilter = isDataTrace
	}

	coreLog = newLogger("core", toLogrusLevel(sec.Key("core").MustInt(2)), consoleMin, fileMin, logFile, nil)
	capiLog = newLogger("capi", toLogrusLevel(sec.Key("capi").MustInt(2)), consoleMin, fileMin, logFile, capiFilter)
	mediaLog = newLogger("media", toLogrusLevel(sec.Key("media").MustInt(3)), consoleMin, fileMin, logFile, nil)
	apiLog = newLogger("api", toLogrusLevel(sec.Key("api").MustInt(2)), consoleMin, fileMin, logFile, nil)
	return nil
}

func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

// writerHook writes logs to the specified writer for provided levels.
// Entries matched by Skip are dropped.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
	Skip      func(*logrus.Entry) bool
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	if h.Skip != nil && h.Skip(e) {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level {
	return h.LogLevels
}

func newLogger(name string, level, consoleMin, fileMin logrus.Level, file io.Writer, skip func(*logrus.Entry) bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.AddHook(&writerHook{Writer: os.Stdout, LogLevels: availableLevels(consoleMin), Skip: skip})
	logger.AddHook(&writerHook{Writer: file, LogLevels: availableLevels(fileMin), Skip: skip})
	return logger.WithField("name", name)
}

func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

// settingLevels maps the 0 (trace) to 5 (fatal) scale of settings.ini;
// anything above switches a logger off.
var settingLevels = []logrus.Level{
	logrus.TraceLevel,
	logrus.DebugLevel,
	logrus.InfoLevel,
	logrus.WarnLevel,
	logrus.ErrorLevel,
	logrus.FatalLevel,
}

func toLogrusLevel(v int) logrus.Level {
	if v < 0 {
		v = 0
	}
	if v >= len(settingLevels) {
		return logrus.PanicLevel
	}
	return settingLevels[v]
}

func isDataTrace(e *logrus.Entry) bool {
	return e.Level == logrus.TraceLevel &&
		(strings.HasPrefix(e.Message, "IND: DATA_B3") || strings.HasPrefix(e.Message, "REQ: DATA_B3"))
}
