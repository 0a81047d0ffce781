package main

import "chat-exchange/internal/commands"

func main() {
	commands.Execute()
}
