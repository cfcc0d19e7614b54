package main

import "study-partner-backend/cmd"

func main() {
	cmd.Run()
}
