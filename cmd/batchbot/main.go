package main

import "os"

// @title Batch Extractor Bot API
// @version 1.0.0
// @description Chat webhook and report downloads for the batch extractor bot
// @BasePath /
// @schemes http https

func main() {
	os.Exit(Execute())
}
