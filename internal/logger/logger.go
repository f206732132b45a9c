package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	SillyLevel
)

var levelNames = map[string]Level{
	"fatal": FatalLevel,
	"error": ErrorLevel,
	"warn":  WarnLevel,
	"info":  InfoLevel,
	"debug": DebugLevel,
	"silly": SillyLevel,
}

func (level Level) String() string {
	for name, value := range levelNames {
		if value == level {
			return strings.ToUpper(name)
		}
	}
	return "UNKNOWN"
}

func ParseLevel(name string) (Level, error) {
	level, ok := levelNames[strings.ToLower(name)]
	if !ok {
		return InfoLevel, errors.New("unknown log level: " + name)
	}
	return level, nil
}

type Options struct {
	Level string
	// Logger receives the output in addition to stdout. Usually a rotating file.
	Logger io.Writer
}

var (
	current = InfoLevel
	output  = log.New(os.Stdout, "", log.LstdFlags)
)

func Init(options Options) {
	level, err := ParseLevel(options.Level)
	if err != nil && options.Level != "" {
		PrintFatal("Could not parse log level: %s", err)
	}
	current = level

	var writer io.Writer = os.Stdout
	if options.Logger != nil {
		writer = io.MultiWriter(os.Stdout, options.Logger)
	}
	output = log.New(writer, "", log.LstdFlags)

	Debugf("Initialized logger with level %s", current)
}

// Quiet discards all output, the cli uses it to keep stdout machine readable.
func Quiet(options Options) {
	level, _ := ParseLevel(options.Level)
	current = level
	writer := io.Discard
	if options.Logger != nil {
		writer = options.Logger
	}
	output = log.New(writer, "", log.LstdFlags)
}

func Enabled(level Level) bool {
	return level <= current
}

func write(level Level, message string) {
	if !Enabled(level) {
		return
	}
	output.Print("[" + level.String() + "] " + message)
}

func Fatal(message string) {
	write(FatalLevel, message)
	os.Exit(1)
}

func Fatalf(format string, a ...any) {
	Fatal(fmt.Sprintf(format, a...))
}

func Error(message string) {
	write(ErrorLevel, message)
}

func Errorf(format string, a ...any) {
	write(ErrorLevel, fmt.Sprintf(format, a...))
}

func Warn(message string) {
	write(WarnLevel, message)
}

func Warnf(format string, a ...any) {
	write(WarnLevel, fmt.Sprintf(format, a...))
}

func Info(message string) {
	write(InfoLevel, message)
}

func Infof(format string, a ...any) {
	write(InfoLevel, fmt.Sprintf(format, a...))
}

func Debug(message string) {
	write(DebugLevel, message)
}

func Debugf(format string, a ...any) {
	write(DebugLevel, fmt.Sprintf(format, a...))
}

func Silly(message string) {
	write(SillyLevel, message)
}

func Sillyf(format string, a ...any) {
	write(SillyLevel, fmt.Sprintf(format, a...))
}

func PrintFatal(format string, a ...any) {
	fmt.Printf(format+"\n", a...)
	os.Exit(1)
}
