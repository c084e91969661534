package main

import "github.com/turbolytics/cataloger/internal/cmd"

func main() {
	cmd.Execute()
}
