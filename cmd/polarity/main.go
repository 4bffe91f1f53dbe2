package main

import (
	"polarity/cmd/handlers"
	"polarity/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
