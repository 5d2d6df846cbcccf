package main

import (
	"log/slog"
	"os"

	"github.com/kadimisettimanoharreddy/conversacloud/cmd/conversacloud/commands"
)

func main() {
	// Initialize structured logger with text format for readability
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
