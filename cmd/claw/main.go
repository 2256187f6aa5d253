package main

import "github.com/kyl3c/claude-code-claw/internal/command"

func main() {
	command.Execute()
}
