// Package util holds the shared config-loading and help-text plumbing
// cachemgrd's commands build on, grounded on dKV's cmd/util.
package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Wrap is the number of characters to Wrap the help text at.
const Wrap int = 60

// WrapString wraps a string at Wrap characters, for long flag usage text.
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env/.env.local (if present) and binds viper to read
// CACHEMGRD_<FLAG> environment variables, matching dKV's DKV_ prefix
// convention one level down for this core's own binary.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("cachemgrd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
