package main

import "github.com/YuminosukeSato/greentaxi/cmd/predictor/cmd"

func main() {
	cmd.Execute()
}
