/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/refreshwal/cmd/refreshwal/cmd"
)

func main() {
	cmd.Execute()
}
