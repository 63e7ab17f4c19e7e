package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write("info", msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write("error", msg, fields)
}

// Debug writes a debug-level log line. Suppressed unless LOG_DEBUG is set.
func Debug(msg string, fields map[string]any) {
	if strings.TrimSpace(os.Getenv("LOG_DEBUG")) == "" {
		return
	}
	write("debug", msg, fields)
}

func write(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["msg"] = msg
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stdout, `{"ts":%q,"level":%q,"msg":%q,"marshal_error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339), level, msg, err.Error())
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
