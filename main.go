/*
Copyright © 2025 zentala
*/
package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/zentala/bookmark-index/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
}
