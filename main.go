package main

import "turing-log-tail/internal/cmd"

func main() {
	cmd.Execute()
}
