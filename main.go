/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "histopost/cmd"

func main() {
	cmd.Execute()
}
