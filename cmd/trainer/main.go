package main

import "github.com/YuminosukeSato/greentaxi/cmd/trainer/cmd"

func main() {
	cmd.Execute()
}
