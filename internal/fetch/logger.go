package fetch

import (
	"fmt"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// leveledLogger adapts logrus to retryablehttp.LeveledLogger. Query strings
// never reach the log since the indexer takes its API key as a query parameter.
type leveledLogger struct {
	entry *logrus.Entry
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		value := keysAndValues[i+1]
		switch key {
		case "url":
			value = redactURL(value)
		case "error":
			if err, ok := value.(error); ok {
				value = transportMessage(err)
			}
		}
		fields[key] = value
	}
	return fields
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(l.fields(keysAndValues)).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(l.fields(keysAndValues)).Info(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(l.fields(keysAndValues)).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(l.fields(keysAndValues)).Warn(msg)
}

func redactURL(v interface{}) interface{} {
	var raw string
	switch u := v.(type) {
	case *url.URL:
		raw = u.String()
	case string:
		raw = u
	default:
		return v
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	parsed.RawQuery = ""
	return parsed.String()
}
